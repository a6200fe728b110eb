// Package reaper expires download links once their retention window has passed.
package reaper

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/ytget/yt-link-bot/internal/lock"
	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/storage"
)

// Store is the registry view the reaper needs
type Store interface {
	FindStale(ctx context.Context, olderThan time.Time) ([]model.DownloadRecord, error)
	Download(ctx context.Context, userID int64, videoID string) (*model.DownloadRecord, error)
	UpsertDownload(ctx context.Context, rec *model.DownloadRecord) error
}

// rowResult is what happened to one stale row
type rowResult int

const (
	rowDeleted rowResult = iota
	rowAlreadyGone
	rowChanged
	rowFailed
)

// Report summarizes one sweep
type Report struct {
	Stale         int
	Deleted       int
	AlreadyGone   int
	Changed       int // rewritten by a newer acquire after the stale scan
	Failed        int
	BucketExpired int
}

// Reaper removes artifacts of stale downloaded rows and marks them deleted
type Reaper struct {
	store     Store
	placer    storage.Placer
	locker    lock.Locker
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// New creates a reaper. locker must be the one the download service holds per
// (owner, video); nil means an in-process KeyLocker.
func New(store Store, placer storage.Placer, locker lock.Locker, retention, interval time.Duration) *Reaper {
	if locker == nil {
		locker = lock.NewKeyLocker()
	}
	return &Reaper{
		store:     store,
		placer:    placer,
		locker:    locker,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Run sweeps immediately and then every interval until ctx is done
func (r *Reaper) Run(ctx context.Context) {
	log.Printf("[INFO] reaper started, retention %s, interval %s", r.retention, r.interval)
	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs a single retention pass
func (r *Reaper) Sweep(ctx context.Context) Report {
	var report Report

	cutoff := r.now().Add(-r.retention)
	stale, err := r.store.FindStale(ctx, cutoff)
	if err != nil {
		log.Printf("[ERROR] reaper: find stale rows: %v", err)
		return report
	}
	report.Stale = len(stale)

	for i := range stale {
		if ctx.Err() != nil {
			break
		}
		switch r.reap(ctx, stale[i]) {
		case rowDeleted:
			report.Deleted++
		case rowAlreadyGone:
			report.Deleted++
			report.AlreadyGone++
		case rowChanged:
			report.Changed++
		case rowFailed:
			report.Failed++
		}
	}

	if expirer, ok := r.placer.(storage.Expirer); ok && ctx.Err() == nil {
		n, err := expirer.Expire(ctx, r.retention)
		if err != nil {
			log.Printf("[WARN] reaper: bucket sweep: %v", err)
		}
		report.BucketExpired = n
	}

	if report.Stale > 0 || report.BucketExpired > 0 {
		log.Printf("[INFO] reaper: %d stale, %d deleted, %d changed, %d failed, %d bucket objects expired",
			report.Stale, report.Deleted, report.Changed, report.Failed, report.BucketExpired)
	}
	return report
}

// reap expires one row under its (owner, video) lock. The row is re-read first
// and left alone if an acquire rewrote it after the stale scan.
func (r *Reaper) reap(ctx context.Context, stale model.DownloadRecord) rowResult {
	unlock, err := r.locker.Lock(ctx, lock.Key(stale.UserID, stale.VideoID))
	if err != nil {
		log.Printf("[WARN] reaper: lock %d/%s: %v", stale.UserID, stale.VideoID, err)
		return rowFailed
	}
	defer unlock()

	current, err := r.store.Download(ctx, stale.UserID, stale.VideoID)
	if err != nil {
		log.Printf("[ERROR] reaper: reload %d/%s: %v", stale.UserID, stale.VideoID, err)
		return rowFailed
	}
	if current == nil || current.Status != model.RecordStatusDownloaded ||
		!current.UpdatedAt.Equal(stale.UpdatedAt) || current.FilePath != stale.FilePath {
		log.Printf("[DEBUG] reaper: %d/%s changed since scan, skipping", stale.UserID, stale.VideoID)
		return rowChanged
	}

	result := rowDeleted
	if current.FilePath != "" {
		if err := r.placer.Remove(ctx, current.FilePath); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Printf("[WARN] reaper: remove %s: %v", current.FilePath, err)
				return rowFailed
			}
			result = rowAlreadyGone
		}
	}

	current.Status = model.RecordStatusDeleted
	current.FilePath = ""
	if err := r.store.UpsertDownload(ctx, current); err != nil {
		log.Printf("[ERROR] reaper: mark %d/%s deleted: %v", current.UserID, current.VideoID, err)
		return rowFailed
	}
	return result
}
