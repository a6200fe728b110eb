package platform

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// LinkKind is the routing decision for a raw link
type LinkKind int

const (
	LinkInvalid LinkKind = iota
	LinkSingleVideo
	LinkPlaylist
	LinkDisallowedPseudoPlaylist
)

// String returns the string representation of LinkKind
func (k LinkKind) String() string {
	switch k {
	case LinkSingleVideo:
		return "single_video"
	case LinkPlaylist:
		return "playlist"
	case LinkDisallowedPseudoPlaylist:
		return "pseudo_playlist"
	default:
		return "invalid"
	}
}

// Account bound list markers
const (
	WatchLaterListID   = "WL"
	LikedVideosListID  = "LL"
	WatchLaterName     = "Watch Later"
	LikedVideosName    = "Liked Videos"
	VideoQueryParam    = "v"
	PlaylistQueryParam = "list"
)

var (
	playlistPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.|music\.)?(youtube\.com|youtu\.?be)/.*(list=).+$`)
	videoPattern    = regexp.MustCompile(`^(https?://)?(www\.|m\.|music\.)?(youtube\.com|youtu\.?be)/.+$`)
	videoIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// Path prefixes that carry a video id as the next segment
var videoPathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// Classify decides how a raw link is routed. Malformed input is LinkInvalid.
func Classify(raw string) LinkKind {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LinkInvalid
	}

	if PseudoPlaylistName(raw) != "" {
		if ExtractVideoID(raw) == "" {
			return LinkDisallowedPseudoPlaylist
		}
		return LinkSingleVideo
	}

	if playlistPattern.MatchString(raw) {
		return LinkPlaylist
	}
	if videoPattern.MatchString(raw) {
		return LinkSingleVideo
	}
	return LinkInvalid
}

// PseudoPlaylistName returns the display name of an account bound list, or "" for other links
func PseudoPlaylistName(raw string) string {
	u := parseLink(raw)
	if u == nil {
		return ""
	}
	switch u.Query().Get(PlaylistQueryParam) {
	case WatchLaterListID:
		return WatchLaterName
	case LikedVideosListID:
		return LikedVideosName
	}
	return ""
}

// ExtractVideoID returns the explicit video id of a link, or "" if the link carries none
func ExtractVideoID(raw string) string {
	u := parseLink(strings.TrimSpace(raw))
	if u == nil {
		return ""
	}

	if id := u.Query().Get(VideoQueryParam); id != "" {
		return id
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "youtu.be" || host == "youtube.be" {
		return firstSegment(u.Path)
	}

	for _, prefix := range videoPathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return firstSegment(strings.TrimPrefix(u.Path, prefix))
		}
	}
	return ""
}

// ExtractPlaylistID extracts the playlist ID from a YouTube playlist URL
func ExtractPlaylistID(raw string) (string, error) {
	if !strings.Contains(raw, PlaylistParam) {
		return "", fmt.Errorf("URL does not contain playlist parameter")
	}

	parts := strings.Split(raw, PlaylistParam)
	playlistID := parts[1]
	if strings.Contains(playlistID, ParamSeparator) {
		playlistID = strings.Split(playlistID, ParamSeparator)[0]
	}

	if playlistID == "" {
		return "", fmt.Errorf("empty playlist ID")
	}
	return playlistID, nil
}

// StripPlaylistParam drops a trailing "&list=..." part, keeping the single video link
func StripPlaylistParam(raw string) string {
	before, _, _ := strings.Cut(raw, ParamSeparator+PlaylistParam)
	return before
}

// IsVideoID reports whether s looks like a bare YouTube video id
func IsVideoID(s string) bool {
	return videoIDPattern.MatchString(s)
}

// WatchURL builds the canonical watch URL for a video id
func WatchURL(videoID string) string {
	return fmt.Sprintf(YouTubeVideoURLTemplate, videoID)
}

// PlaylistURL builds the canonical playlist URL for a playlist id
func PlaylistURL(playlistID string) string {
	return fmt.Sprintf(YouTubePlaylistURLTemplate, playlistID)
}

func parseLink(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(path, "/?#"); i >= 0 {
		path = path[:i]
	}
	return path
}
