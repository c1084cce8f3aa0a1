package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SpacesService wraps the DigitalOcean Spaces (S3-compatible) bucket that
// holds gamification state snapshots.
type SpacesService struct {
	client       *s3.Client
	bucket       string
	region       string
	SnapshotRoot string
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, snapshotRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	return &SpacesService{
		client:       s3.NewFromConfig(cfg),
		bucket:       bucket,
		region:       region,
		SnapshotRoot: strings.Trim(snapshotRoot, "/"),
	}, nil
}

// PutSnapshot uploads one JSON snapshot object under the snapshot root.
func (s *SpacesService) PutSnapshot(ctx context.Context, key string, body []byte) error {
	fullKey := s.SnapshotRoot + "/" + strings.TrimPrefix(key, "/")
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &fullKey,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", fullKey, err)
	}
	return nil
}

// SnapshotURL returns the public URL of a stored snapshot object.
func (s *SpacesService) SnapshotURL(key string) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s/%s",
		s.bucket, s.region, s.SnapshotRoot, strings.TrimPrefix(key, "/"))
}
