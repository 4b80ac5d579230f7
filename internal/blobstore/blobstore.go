// Package blobstore stores binary artifacts (podcast scripts and audio) and
// hands back publicly readable URLs.
package blobstore

import "context"

// Store uploads an object and returns its public URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
