package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"
)

// Timeout constants
const (
	DefaultParseTimeout = 60 * time.Second
)

// URL parameters and separators
const (
	PlaylistParam  = "list="
	ParamSeparator = "&"
)

// Default values
const (
	DefaultPlaylistName = "Unknown Playlist"
)

// URL templates
const (
	YouTubeVideoURLTemplate    = "https://www.youtube.com/watch?v=%s"
	YouTubePlaylistURLTemplate = "https://www.youtube.com/playlist?list=%s"
)

// Playlist title constants
const (
	MinPrefixLength = 10
	PlaylistSuffix  = " Playlist"
)

// PlaylistEntry is one video of a playlist
type PlaylistEntry struct {
	VideoID string
	Title   string
	URL     string
}

// PlaylistListing is an expanded playlist
type PlaylistListing struct {
	ID      string
	Title   string
	Entries []PlaylistEntry
}

// URLs returns the watch URLs of the listing in playlist order
func (l *PlaylistListing) URLs() []string {
	urls := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		urls = append(urls, e.URL)
	}
	return urls
}

// YTDLPParserService handles parsing of YouTube playlists using library
type YTDLPParserService struct {
	timeout time.Duration
}

// NewYTDLPParserService creates a new parser service
func NewYTDLPParserService() *YTDLPParserService {
	return &YTDLPParserService{
		timeout: DefaultParseTimeout,
	}
}

// SetTimeout sets the timeout for parsing operations
func (y *YTDLPParserService) SetTimeout(timeout time.Duration) {
	y.timeout = timeout
}

// ParsePlaylist expands a YouTube playlist into its entries
func (y *YTDLPParserService) ParsePlaylist(ctx context.Context, url string) (*PlaylistListing, error) {
	if !y.isValidPlaylistURL(url) {
		return nil, fmt.Errorf("invalid playlist URL: %s", url)
	}

	playlistID, err := ExtractPlaylistID(url)
	if err != nil {
		return nil, fmt.Errorf("could not extract playlist ID from URL %s: %w", url, err)
	}

	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	entries := make([]PlaylistEntry, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		entries = append(entries, PlaylistEntry{
			VideoID: it.VideoID,
			Title:   it.Title,
			URL:     WatchURL(it.VideoID),
		})
	}

	return &PlaylistListing{
		ID:      playlistID,
		Title:   y.extractPlaylistTitle(entries),
		Entries: entries,
	}, nil
}

// isValidPlaylistURL checks if the URL is a valid YouTube playlist URL
func (y *YTDLPParserService) isValidPlaylistURL(url string) bool {
	return strings.Contains(url, PlaylistParam)
}

// extractPlaylistTitle generates a title for the playlist based on its entries
func (y *YTDLPParserService) extractPlaylistTitle(entries []PlaylistEntry) string {
	if len(entries) == 0 {
		return DefaultPlaylistName
	}
	if len(entries) > 1 {
		commonPrefix := y.findCommonPrefix(entries[0].Title, entries[1].Title)
		if len(commonPrefix) > MinPrefixLength {
			return strings.TrimSpace(commonPrefix) + PlaylistSuffix
		}
	}
	return entries[0].Title + PlaylistSuffix
}

// findCommonPrefix finds the common prefix between two strings
func (y *YTDLPParserService) findCommonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
