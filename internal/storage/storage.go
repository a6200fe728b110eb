// Package storage places fetched artifacts where users can download them and
// produces time bounded links.
package storage

import (
	"context"
	"time"
)

// Placement is a placed artifact
type Placement struct {
	Location  string // persisted backing location, a local path or s3://bucket/key
	FileName  string
	URL       string
	Size      int64
	ExpiresAt time.Time
}

// Placer moves a local artifact to its serving location
type Placer interface {
	Place(ctx context.Context, ownerID int64, localPath string) (*Placement, error)
	// Remove deletes the artifact behind location. A missing artifact yields an fs.ErrNotExist error.
	Remove(ctx context.Context, location string) error
}

// Expirer is implemented by placers that can sweep their own backing store
type Expirer interface {
	Expire(ctx context.Context, olderThan time.Duration) (int, error)
}
