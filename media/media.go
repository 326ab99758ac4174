// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package media stores binary assets such as organization logos outside the
database. There are two driver backends: a local filesystem and AWS S3.
*/
package media

import (
	"context"
	"io"
	"time"
)

// Driver is the storage interface for media assets
type Driver interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	Download(ctx context.Context, key string) (body io.ReadCloser, contentType string, err error)
	Delete(ctx context.Context, key string) error
	DeleteAllWithPrefix(ctx context.Context, prefix string) error
}

// URLSigner is implemented by drivers that can hand out pre-signed download
// URLs. Handlers redirect to the signed URL instead of streaming the asset
// themselves.
type URLSigner interface {
	SignedDownloadURL(ctx context.Context, key string, expireIn time.Duration) (string, error)
}

// DriverType selects the media driver
type DriverType string

// the driver types
const (
	// DriverTypeNone disables media storage
	DriverTypeNone DriverType = ""
	// DriverTypeLocal stores assets on the local filesystem
	DriverTypeLocal DriverType = "Local"
	// DriverTypeAWSS3 stores assets in an S3 bucket
	DriverTypeAWSS3 DriverType = "AWSS3"
)

// Configuration contains the configuration for the media store
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// NewDriver creates the driver selected by the configuration. It returns nil
// for DriverTypeNone.
func NewDriver(config Configuration) (Driver, error) {
	switch config.DriverType {
	case DriverTypeLocal:
		return NewLocalFilesystem(config.LocalConfiguration.BasePath)
	case DriverTypeAWSS3:
		return NewS3(*config.S3Configuration)
	}
	return nil, nil
}
