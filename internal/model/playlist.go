package model

import (
	"time"
)

// ItemStatus represents the status of a single item in a batch
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// BatchItem is a single video inside a batch
type BatchItem struct {
	Index     int        `json:"index"`
	URL       string     `json:"url"`
	VideoID   string     `json:"video_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Status    ItemStatus `json:"status"`
	FileURL   string     `json:"file_url,omitempty"`
	Reason    Reason     `json:"reason,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PlaylistBatch groups videos requested together with one shared quality
type PlaylistBatch struct {
	PlaylistID string       `json:"playlist_id,omitempty"`
	OwnerID    int64        `json:"owner_id"`
	Quality    string       `json:"quality"`
	Items      []*BatchItem `json:"items"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewPlaylistBatch creates a batch with one pending item per url, in input order
func NewPlaylistBatch(ownerID int64, quality string, urls []string) *PlaylistBatch {
	now := time.Now()
	b := &PlaylistBatch{
		OwnerID:   ownerID,
		Quality:   quality,
		Items:     make([]*BatchItem, 0, len(urls)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, u := range urls {
		b.Items = append(b.Items, &BatchItem{
			Index:     i,
			URL:       u,
			Status:    ItemStatusPending,
			UpdatedAt: now,
		})
	}
	return b
}

// Total returns the number of items in the batch
func (b *PlaylistBatch) Total() int {
	return len(b.Items)
}

// MarkProcessing flags the item at index as in flight
func (b *PlaylistBatch) MarkProcessing(index int) {
	if item := b.item(index); item != nil {
		item.Status = ItemStatusProcessing
		b.touch(item)
	}
}

// Complete records the outcome of the item at index
func (b *PlaylistBatch) Complete(index int, outcome *DownloadOutcome) {
	item := b.item(index)
	if item == nil {
		return
	}
	if outcome.Succeeded() {
		item.Status = ItemStatusCompleted
		item.FileURL = outcome.FileURL
		item.Reason = ""
	} else {
		item.Status = ItemStatusFailed
		if outcome != nil {
			item.Reason = outcome.Reason
		}
	}
	if outcome != nil {
		item.VideoID = outcome.VideoID
		item.Title = outcome.Title
	}
	b.touch(item)
}

// Succeeded returns the number of completed items
func (b *PlaylistBatch) Succeeded() int {
	n := 0
	for _, item := range b.Items {
		if item.Status == ItemStatusCompleted {
			n++
		}
	}
	return n
}

// Done returns the number of items in a terminal state
func (b *PlaylistBatch) Done() int {
	n := 0
	for _, item := range b.Items {
		if item.Status == ItemStatusCompleted || item.Status == ItemStatusFailed {
			n++
		}
	}
	return n
}

// Progress returns overall progress as percentage
func (b *PlaylistBatch) Progress() float64 {
	if len(b.Items) == 0 {
		return 0
	}
	return float64(b.Done()) / float64(len(b.Items)) * 100
}

// Links returns produced file URLs in input order
func (b *PlaylistBatch) Links() []string {
	var links []string
	for _, item := range b.Items {
		if item.Status == ItemStatusCompleted && item.FileURL != "" {
			links = append(links, item.FileURL)
		}
	}
	return links
}

// HasErrors checks if any item has failed
func (b *PlaylistBatch) HasErrors() bool {
	for _, item := range b.Items {
		if item.Status == ItemStatusFailed {
			return true
		}
	}
	return false
}

func (b *PlaylistBatch) item(index int) *BatchItem {
	if index < 0 || index >= len(b.Items) {
		return nil
	}
	return b.Items[index]
}

func (b *PlaylistBatch) touch(item *BatchItem) {
	now := time.Now()
	item.UpdatedAt = now
	b.UpdatedAt = now
}

// BatchReport is the aggregated result of a batch run
type BatchReport struct {
	Batch       *PlaylistBatch
	Outcomes    []*DownloadOutcome
	Succeeded   int
	Total       int
	NothingToDo bool
}
