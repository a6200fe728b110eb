package model

import "testing"

func TestPlaylistBatch_Lifecycle(t *testing.T) {
	b := NewPlaylistBatch(42, "720p", []string{"u1", "u2", "u3"})
	if b.Total() != 3 {
		t.Fatalf("expected 3 items, got %d", b.Total())
	}
	if b.Progress() != 0 {
		t.Errorf("expected 0 progress, got %f", b.Progress())
	}

	b.MarkProcessing(0)
	if b.Items[0].Status != ItemStatusProcessing {
		t.Errorf("expected processing, got %s", b.Items[0].Status)
	}
	b.Complete(0, &DownloadOutcome{Status: RecordStatusDownloaded, FileURL: "http://x/1"})
	b.Complete(1, &DownloadOutcome{Status: RecordStatusFailed, Reason: ReasonDownloadFailed})
	b.Complete(2, &DownloadOutcome{Status: RecordStatusDownloaded, FileURL: "http://x/3"})
	b.Complete(7, &DownloadOutcome{Status: RecordStatusDownloaded})

	if b.Succeeded() != 2 {
		t.Errorf("expected 2 succeeded, got %d", b.Succeeded())
	}
	if b.Done() != 3 {
		t.Errorf("expected 3 done, got %d", b.Done())
	}
	if !b.HasErrors() {
		t.Error("expected HasErrors to be true")
	}
	if b.Items[1].Reason != ReasonDownloadFailed {
		t.Errorf("expected reason %s, got %s", ReasonDownloadFailed, b.Items[1].Reason)
	}
	links := b.Links()
	if len(links) != 2 || links[0] != "http://x/1" || links[1] != "http://x/3" {
		t.Errorf("unexpected links %v", links)
	}
	if b.Progress() != 100 {
		t.Errorf("expected 100 progress, got %f", b.Progress())
	}
}

func TestPlaylistBatch_Empty(t *testing.T) {
	b := NewPlaylistBatch(1, "480p", nil)
	if b.Progress() != 0 || b.HasErrors() || len(b.Links()) != 0 {
		t.Error("expected empty batch to report nothing")
	}
}
