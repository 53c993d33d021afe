// Package builds3 keeps published artifacts in S3-compatible object storage.
package builds3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/k11v/web2app/internal/build"
)

const DefaultPrefix = "downloads/"

// uploadPartSize should be greater than or equal 5MB.
// See github.com/aws/aws-sdk-go-v2/feature/s3/manager.
const uploadPartSize = 10 * 1024 * 1024 // 10MB

var _ build.ArtifactStore = (*Store)(nil)

type Store struct {
	Client *s3.Client // required
	Bucket string     // required
	Prefix string     // zero value means DefaultPrefix
}

// Put uploads the artifact. Object storage replaces an existing object
// with the same key atomically.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) error {
	if !build.IsValidArtifactName(name) {
		return fmt.Errorf("builds3.Store: invalid artifact name %q", name)
	}

	uploader := manager.NewUploader(s.Client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.Bucket,
		Key:         s.key(name),
		Body:        r,
		ContentType: contentType("application/vnd.android.package-archive"),
	})
	if err != nil {
		return fmt.Errorf("builds3.Store: %w", err)
	}

	return nil
}

func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !build.IsValidArtifactName(name) {
		return nil, fmt.Errorf("builds3.Store: %w", build.ErrNotFound)
	}

	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    s.key(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("builds3.Store: %w", build.ErrNotFound)
		}
		return nil, fmt.Errorf("builds3.Store: %w", err)
	}

	return out.Body, nil
}

func (s *Store) key(name string) *string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	key := prefix + name
	return &key
}

func isNotFound(err error) bool {
	if noSuchKey := (*types.NoSuchKey)(nil); errors.As(err, &noSuchKey) {
		return true
	}
	if apiErr := smithy.APIError(nil); errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func contentType(s string) *string {
	return &s
}
