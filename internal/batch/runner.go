// Package batch fans a list of links or a playlist out into sequential acquisitions.
package batch

import (
	"context"
	"fmt"
	"log"

	"github.com/ytget/yt-link-bot/internal/model"
)

// Acquirer produces a link for one video
type Acquirer interface {
	Acquire(ctx context.Context, req model.AcquireRequest) *model.DownloadOutcome
}

// PlaylistExpander lists the watch URLs of a playlist
type PlaylistExpander interface {
	ResolvePlaylist(ctx context.Context, url string) ([]string, string, error)
}

// ProgressFunc is called after each item, in input order
type ProgressFunc func(batch *model.PlaylistBatch, item *model.BatchItem, outcome *model.DownloadOutcome)

// Runner runs batches one item at a time
type Runner struct {
	acquirer Acquirer
	expander PlaylistExpander
}

// NewRunner creates a batch runner
func NewRunner(acquirer Acquirer, expander PlaylistExpander) *Runner {
	return &Runner{acquirer: acquirer, expander: expander}
}

// Run acquires every url in order with one shared quality. A failed item does not stop the batch.
func (r *Runner) Run(ctx context.Context, ownerID int64, urls []string, quality string, progress ProgressFunc) *model.BatchReport {
	b := model.NewPlaylistBatch(ownerID, quality, urls)
	report := &model.BatchReport{
		Batch:    b,
		Outcomes: make([]*model.DownloadOutcome, 0, len(urls)),
		Total:    b.Total(),
	}
	if b.Total() == 0 {
		report.NothingToDo = true
		return report
	}

	kind := model.KindForQuality(quality)
	for i, item := range b.Items {
		var outcome *model.DownloadOutcome
		if err := ctx.Err(); err != nil {
			failure := model.FailureFor(err)
			outcome = &model.DownloadOutcome{
				Status:    model.RecordStatusFailed,
				Reason:    failure.Reason,
				Retryable: failure.Retryable,
				Err:       err,
			}
		} else {
			b.MarkProcessing(i)
			req := model.VideoRequest{SourceURL: item.URL, Quality: quality, Kind: kind}
			outcome = r.acquirer.Acquire(ctx, req.AcquireFor(ownerID))
		}

		b.Complete(i, outcome)
		report.Outcomes = append(report.Outcomes, outcome)
		if progress != nil {
			progress(b, item, outcome)
		}
	}

	report.Succeeded = b.Succeeded()
	log.Printf("[INFO] batch for %d finished: %d/%d succeeded", ownerID, report.Succeeded, report.Total)
	return report
}

// RunPlaylist expands the playlist and runs it as a batch
func (r *Runner) RunPlaylist(ctx context.Context, ownerID int64, playlistURL, quality string, progress ProgressFunc) (*model.BatchReport, error) {
	urls, playlistID, err := r.expander.ResolvePlaylist(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("expand playlist: %w", err)
	}

	report := r.Run(ctx, ownerID, urls, quality, progress)
	report.Batch.PlaylistID = playlistID
	return report, nil
}
