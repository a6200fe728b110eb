package model

import (
	"fmt"
	"strings"
	"time"
)

// MediaKind selects between a video rendition and an audio-only rendition
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// Audio quality labels offered next to the video resolutions
const (
	AudioQuality128 = "128kbps"
	AudioQuality320 = "320kbps"
)

// KindForQuality infers the media kind from a quality label chosen by the user
func KindForQuality(quality string) MediaKind {
	switch quality {
	case AudioQuality128, AudioQuality320, "bestaudio_128", "bestaudio_320":
		return MediaAudio
	}
	return MediaVideo
}

// Format is one selectable rendition of a video
type Format struct {
	ID         string // extractor format identifier or synthetic audio id
	Extension  string // container extension (mp4, webm, mp3)
	Resolution string // "720p" or "128kbps"
	Note       string
}

// VideoDetails is the resolved metadata of a single video
type VideoDetails struct {
	VideoID          string
	Title            string
	ThumbnailURL     string
	AvailableFormats []Format
}

// VideoRequest is a transient request created per user action
type VideoRequest struct {
	SourceURL string
	VideoID   string
	Title     string
	Quality   string // resolution label, audio bitrate label, or raw format id
	FormatID  string // extractor format picked by the resolver, empty for batch ladders
	Kind      MediaKind
}

// AcquireFor turns the request into an orchestrator call on behalf of ownerID.
// The video id is used when no source URL is known.
func (r VideoRequest) AcquireFor(ownerID int64) AcquireRequest {
	url := r.SourceURL
	if url == "" {
		url = r.VideoID
	}
	kind := r.Kind
	if kind == "" {
		kind = KindForQuality(r.Quality)
	}
	return AcquireRequest{
		OwnerID:  ownerID,
		URL:      url,
		Kind:     kind,
		Quality:  r.Quality,
		FormatID: r.FormatID,
	}
}

// AcquireRequest asks the orchestrator to produce a link for one video
type AcquireRequest struct {
	OwnerID  int64
	URL      string // watch URL; a bare video id is accepted as well
	Kind     MediaKind
	Quality  string
	FormatID string
}

// DownloadTask carries runtime telemetry of one acquire invocation
type DownloadTask struct {
	ID         string
	OwnerID    int64
	URL        string
	VideoID    string
	Title      string
	Stage      Stage
	Progress   float64   // 0.0 to 1.0
	Percent    int       // 0 to 100
	ETASec     int       // ETA in seconds, -1 if unknown
	LastError  string    // last error message if any
	OutputPath string    // path of the local artifact
	StartedAt  time.Time // when the invocation started
	FinishedAt time.Time // when the invocation finished
}

// GetETAString returns ETA formatted as hh:mm:ss, or "—" if unknown
func (dt *DownloadTask) GetETAString() string {
	if dt.ETASec <= 0 {
		return "—"
	}

	hours := dt.ETASec / 3600
	minutes := (dt.ETASec % 3600) / 60
	seconds := dt.ETASec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetDisplayTitle returns title, filename, or URL in order of preference
func (dt *DownloadTask) GetDisplayTitle() string {
	if dt.Title != "" && !strings.HasPrefix(dt.Title, "http") {
		return dt.Title
	}

	if dt.OutputPath != "" {
		parts := strings.FieldsFunc(dt.OutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}

	return dt.URL
}

// DownloadOutcome is the structured result handed back to the front-end
type DownloadOutcome struct {
	Status    RecordStatus // downloaded or failed
	Reason    Reason       // empty on success
	Retryable bool
	Err       error // underlying cause, for logging only

	VideoID   string
	Title     string
	CoverURL  string
	FileName  string
	FileURL   string
	FileSize  int64
	Quality   string
	ExpiresAt time.Time
}

// Succeeded reports whether the link is ready
func (o *DownloadOutcome) Succeeded() bool {
	return o != nil && o.Status == RecordStatusDownloaded
}
