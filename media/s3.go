// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/relabs-tech/ixdir/core/logger"
)

// S3Configuration contains the configuration for the AWS S3 driver
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	AccessID      string
	AccessKey     string
	// KeyPrefix is prepended to all keys, it scopes the service to a part
	// of the bucket
	KeyPrefix string
}

// S3 stores assets in an AWS S3 bucket
type S3 struct {
	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
	bucket    string
	keyPrefix string
}

// NewS3 returns a new S3 driver
func NewS3(s3Config S3Configuration) (*S3, error) {
	if s3Config.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}
	awsConfig, err := config.LoadDefaultConfig(
		context.TODO(),
		config.WithRegion(s3Config.AWSRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3Config.AccessID, s3Config.AccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsConfig)
	logger.Default().Debugln("media: S3 enabled for bucket ", s3Config.AWSBucketName)
	return &S3{
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: s3.NewPresignClient(client),
		bucket:    s3Config.AWSBucketName,
		keyPrefix: s3Config.KeyPrefix,
	}, nil
}

// Upload stores the asset under the key, replacing a previous version
func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.keyPrefix + key),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	return err
}

// Download opens the asset stored under the key. The caller closes the
// returned reader.
func (s *S3) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + key),
	})
	if err != nil {
		return nil, "", err
	}
	contentType := ""
	if output.ContentType != nil {
		contentType = *output.ContentType
	}
	return output.Body, contentType, nil
}

// SignedDownloadURL returns a pre-signed GET URL for the key
func (s *S3) SignedDownloadURL(ctx context.Context, key string, expireIn time.Duration) (string, error) {
	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + key),
	}, s3.WithPresignExpires(expireIn))
	if err != nil {
		return "", err
	}
	return request.URL, nil
}

// Delete removes the asset stored under the key
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + key),
	})
	return err
}

// DeleteAllWithPrefix removes all assets below the prefix
func (s *S3) DeleteAllWithPrefix(ctx context.Context, prefix string) error {
	var continuationToken *string
	for {
		listed, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.keyPrefix + prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return err
		}
		for _, item := range listed.Contents {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    item.Key,
			})
			if err != nil {
				return err
			}
		}
		continuationToken = listed.NextContinuationToken
		if continuationToken == nil {
			return nil
		}
	}
}
