package platform

import (
	"context"
	"testing"
	"time"
)

func TestNewYTDLPParserService(t *testing.T) {
	service := NewYTDLPParserService()
	if service == nil {
		t.Fatal("service should not be nil")
	}
	if service.timeout != DefaultParseTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultParseTimeout, service.timeout)
	}

	service.SetTimeout(30 * time.Second)
	if service.timeout != 30*time.Second {
		t.Errorf("expected timeout %v, got %v", 30*time.Second, service.timeout)
	}
}

func TestIsValidPlaylistURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"watch with list", "https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID", true},
		{"playlist page", "https://www.youtube.com/playlist?list=PLAYLIST_ID", true},
		{"single video", "https://www.youtube.com/watch?v=VIDEO_ID", false},
		{"empty", "", false},
	}

	service := NewYTDLPParserService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.isValidPlaylistURL(tt.url); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestParsePlaylist_InvalidURL(t *testing.T) {
	service := NewYTDLPParserService()
	if _, err := service.ParsePlaylist(context.Background(), "https://www.youtube.com/watch?v=x"); err == nil {
		t.Error("expected error for URL without list parameter")
	}
	if _, err := service.ParsePlaylist(context.Background(), "https://www.youtube.com/playlist?list="); err == nil {
		t.Error("expected error for empty playlist id")
	}
}

func TestExtractPlaylistTitle(t *testing.T) {
	tests := []struct {
		name     string
		entries  []PlaylistEntry
		expected string
	}{
		{"empty", nil, DefaultPlaylistName},
		{"single", []PlaylistEntry{{Title: "Song"}}, "Song" + PlaylistSuffix},
		{
			"common prefix",
			[]PlaylistEntry{{Title: "Great Course Lesson 1"}, {Title: "Great Course Lesson 2"}},
			"Great Course Lesson" + PlaylistSuffix,
		},
		{
			"short prefix",
			[]PlaylistEntry{{Title: "Abc one"}, {Title: "Abc two"}},
			"Abc one" + PlaylistSuffix,
		},
	}

	service := NewYTDLPParserService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.extractPlaylistTitle(tt.entries); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPlaylistListing_URLs(t *testing.T) {
	l := &PlaylistListing{Entries: []PlaylistEntry{
		{VideoID: "a", URL: WatchURL("a")},
		{VideoID: "b", URL: WatchURL("b")},
	}}
	urls := l.URLs()
	if len(urls) != 2 || urls[0] != WatchURL("a") || urls[1] != WatchURL("b") {
		t.Errorf("unexpected urls %v", urls)
	}
}
