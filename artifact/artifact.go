// Package artifact stores files produced during a session, such as
// screenshots, on the local filesystem or in S3.
package artifact

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Storage kinds accepted by New.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

// Store saves named artifacts and tells where they can be found.
type Store interface {
	// Save writes the content of r under name, replacing any previous
	// artifact, and returns its location.
	Save(ctx context.Context, name string, r io.Reader) (string, error)

	// Open reads the artifact stored under name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether an artifact is stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// Location returns an absolute path or URL for the artifact.
	Location(ctx context.Context, name string) (string, error)
}

// Options selects and configures a Store.
type Options struct {
	Kind string

	// Dir is the base directory of local storage.
	Dir string

	Bucket        string
	Region        string
	Prefix        string
	PresignExpiry time.Duration
}

// New creates the Store named by opts.Kind. An empty kind means local.
func New(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Kind) {
	case "", KindLocal:
		return NewLocalStore(opts.Dir)

	case KindS3:
		s, err := NewS3Store(ctx, opts.Bucket, opts.Region, opts.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		if opts.PresignExpiry > 0 {
			s.presignExpiration = opts.PresignExpiry
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", opts.Kind)
	}
}
