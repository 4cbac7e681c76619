// Package archive stores settlement receipts in an S3-compatible bucket and
// hands out presigned download links for them.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	sc "github.com/dmitrijs2005/gophpool/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Receipt is the document written for each settlement.
type Receipt struct {
	Version int `json:"version"`
	*pool.Settlement
	SettledAtUTC string `json:"settled_at_utc"`
}

// S3Archive writes receipts with PutObject and presigns GETs for them.
type S3Archive struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	urlTTL  time.Duration
}

func NewS3Archive(ctx context.Context, cfg *sc.Config) (*S3Archive, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			// MinIO and friends do not serve virtual-hosted buckets.
			o.UsePathStyle = true
		}
	})

	ttl := cfg.ReceiptURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3Archive{
		client:  client,
		presign: newS3PresignClient(client),
		bucket:  cfg.S3Bucket,
		urlTTL:  ttl,
	}, nil
}

// ReceiptKey is the object key of a settlement's receipt, partitioned by
// settlement date.
func ReceiptKey(s *pool.Settlement) string {
	d := time.Unix(s.SettledAt, 0).UTC()
	return fmt.Sprintf("receipts/%d/%02d/%02d/%s.json", d.Year(), d.Month(), d.Day(), s.ID)
}

func (a *S3Archive) PutReceipt(ctx context.Context, s *pool.Settlement) (string, error) {
	body, err := json.MarshalIndent(Receipt{
		Version:      1,
		Settlement:   s,
		SettledAtUTC: time.Unix(s.SettledAt, 0).UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", err
	}

	key := ReceiptKey(s)
	_, err = putObject(a.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

func (a *S3Archive) PresignReceipt(ctx context.Context, key string) (string, error) {
	req, err := presignGetObject(a.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(a.urlTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
