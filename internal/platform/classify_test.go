package platform

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want LinkKind
	}{
		{"watch", "https://www.youtube.com/watch?v=abc123def45", LinkSingleVideo},
		{"short host", "https://youtu.be/abc123def45", LinkSingleVideo},
		{"no scheme", "youtube.com/watch?v=abc123def45", LinkSingleVideo},
		{"shorts", "https://youtube.com/shorts/abc123def45", LinkSingleVideo},
		{"playlist", "https://www.youtube.com/playlist?list=PLabc", LinkPlaylist},
		{"watch in playlist", "https://www.youtube.com/watch?v=abc123def45&list=PLabc", LinkPlaylist},
		{"watch later", "https://www.youtube.com/playlist?list=WL", LinkDisallowedPseudoPlaylist},
		{"liked", "https://www.youtube.com/playlist?list=LL", LinkDisallowedPseudoPlaylist},
		{"watch later with video", "https://www.youtube.com/watch?v=abc123def45&list=WL", LinkSingleVideo},
		{"liked with video", "https://youtu.be/abc123def45?list=LL", LinkSingleVideo},
		{"other host", "https://vimeo.com/123", LinkInvalid},
		{"bare host", "https://www.youtube.com/", LinkInvalid},
		{"empty", "", LinkInvalid},
		{"garbage", "%%%::not a url", LinkInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.raw); got != tt.want {
				t.Errorf("Classify(%q): expected %s, got %s", tt.raw, tt.want, got)
			}
		})
	}
}

func TestPseudoPlaylistName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.youtube.com/playlist?list=WL", WatchLaterName},
		{"https://www.youtube.com/playlist?list=LL", LikedVideosName},
		{"https://www.youtube.com/playlist?list=PLx", ""},
		{"https://www.youtube.com/playlist?list=WLX", ""},
	}
	for _, tt := range tests {
		if got := PseudoPlaylistName(tt.raw); got != tt.want {
			t.Errorf("PseudoPlaylistName(%q): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc123def45&t=10", "abc123def45"},
		{"https://youtu.be/abc123def45?si=x", "abc123def45"},
		{"https://www.youtube.com/shorts/abc123def45", "abc123def45"},
		{"https://www.youtube.com/embed/abc123def45", "abc123def45"},
		{"https://www.youtube.com/playlist?list=PLx", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractVideoID(tt.raw); got != tt.want {
			t.Errorf("ExtractVideoID(%q): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"playlist page", "https://www.youtube.com/playlist?list=PLabc", "PLabc", false},
		{"watch with extras", "https://www.youtube.com/watch?v=x&list=PLabc&start_radio=1", "PLabc", false},
		{"no list", "https://www.youtube.com/watch?v=x", "", true},
		{"empty list", "https://www.youtube.com/playlist?list=", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPlaylistID(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStripPlaylistParam(t *testing.T) {
	got := StripPlaylistParam("https://www.youtube.com/watch?v=abc123def45&list=RDabc&index=2")
	if got != "https://www.youtube.com/watch?v=abc123def45" {
		t.Errorf("unexpected result %q", got)
	}
	plain := "https://youtu.be/abc123def45"
	if got := StripPlaylistParam(plain); got != plain {
		t.Errorf("expected unchanged link, got %q", got)
	}
}

func TestIsVideoIDAndWatchURL(t *testing.T) {
	if !IsVideoID("abc123def45") {
		t.Error("expected 11 char id to be accepted")
	}
	if IsVideoID("https://youtu.be/abc123def45") {
		t.Error("expected URL to be rejected")
	}
	if got := WatchURL("abc123def45"); got != "https://www.youtube.com/watch?v=abc123def45" {
		t.Errorf("unexpected watch URL %q", got)
	}
}

func TestPlaylistURL(t *testing.T) {
	got := PlaylistURL("PLabc")
	if got != "https://www.youtube.com/playlist?list=PLabc" {
		t.Errorf("unexpected playlist URL %q", got)
	}
	if Classify(got) != LinkPlaylist {
		t.Errorf("expected playlist URL to classify as playlist")
	}
}
