// Package minio provides a blobstore.Mirror backed by MinIO or any
// S3-compatible object store.
package minio

import (
	"context"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/findhub/blobstore"
)

// Compile-time check to ensure Mirror satisfies the interface.
var _ blobstore.Mirror = (*Mirror)(nil)

// Mirror replicates catalog files to a MinIO bucket.
type Mirror struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMirror creates a new MinIO mirror.
// rootPrefix is prepended to all keys (e.g. "findhub/").
func NewMirror(client *minio.Client, bucket, rootPrefix string) *Mirror {
	return &Mirror{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (m *Mirror) key(name string) string {
	return path.Join(m.prefix, name)
}

// Pull downloads the remote object into localPath.
func (m *Mirror) Pull(ctx context.Context, name, localPath string) error {
	err := m.client.FGetObject(ctx, m.bucket, m.key(name), localPath, minio.GetObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return blobstore.ErrNotFound
		}
		return err
	}
	return nil
}

// Push uploads the file at localPath.
func (m *Mirror) Push(ctx context.Context, name, localPath string) error {
	_, err := m.client.FPutObject(ctx, m.bucket, m.key(name), localPath, minio.PutObjectOptions{})
	return err
}
