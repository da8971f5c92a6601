package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// newS3Store parses "s3://bucket/optional/prefix" and builds a client from
// the standard AWS credential chain.
func newS3Store(ctx context.Context, artifactBase string) (*s3Store, error) {
	rest := strings.TrimPrefix(artifactBase, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	bucket := parts[0]
	prefix := ""
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	if bucket == "" {
		return nil, fmt.Errorf("artifacts: invalid s3 artifact base %q", artifactBase)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("artifacts: load aws config: %w", err)
	}
	return &s3Store{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func (s *s3Store) Put(ctx context.Context, tenant, docID, versionLabel string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s/%s.json", tenant, docID, versionLabel)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("artifacts: s3 put: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
