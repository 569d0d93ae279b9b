// Package s3 provides a blobstore.Mirror backed by AWS S3.
package s3

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/findhub/blobstore"
)

// Compile-time check to ensure Mirror satisfies the interface.
var _ blobstore.Mirror = (*Mirror)(nil)

// Mirror replicates catalog files to an S3 bucket.
type Mirror struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	prefix     string
}

// NewMirror creates a new S3 mirror.
// rootPrefix is prepended to all keys (e.g. "findhub/").
func NewMirror(client *s3.Client, bucket, rootPrefix string) *Mirror {
	return &Mirror{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
		prefix:     rootPrefix,
	}
}

func (m *Mirror) key(name string) string {
	return path.Join(m.prefix, name)
}

// Pull downloads the remote object into localPath.
// The download goes to a temp file first so an interrupted transfer
// never clobbers an existing local copy.
func (m *Mirror) Pull(ctx context.Context, name, localPath string) error {
	key := m.key(name)

	// Existence check up front for a clean ErrNotFound mapping.
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return blobstore.ErrNotFound
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return blobstore.ErrNotFound
		}
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), filepath.Base(localPath)+".pull-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := m.downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

// Push uploads the file at localPath.
func (m *Mirror) Push(ctx context.Context, name, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(name)),
		Body:   f,
	})
	return err
}
