package postgres

import (
	"fmt"
	"strings"
)

// toVectorLiteral renders a float32 vector as the "[v1,v2,...]" literal
// pgvector accepts via an explicit ::vector cast.
func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}
