package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ytget/yt-link-bot/internal/platform"
)

// MaxCallbackData is the Telegram limit for inline button payloads
const MaxCallbackData = 64

const callbackSeparator = "|"

// CallbackKind tags a button payload
type CallbackKind string

const (
	CallbackVideo    CallbackKind = "v" // v|<video id>|<format id>|<quality>
	CallbackPlaylist CallbackKind = "p" // p|<playlist id>|<quality>
	CallbackFileList CallbackKind = "f" // f|<quality>
	CallbackLanguage CallbackKind = "l" // l|<language>
)

// ErrBadCallback is returned for payloads that cannot be parsed
var ErrBadCallback = errors.New("bad callback data")

// Callback is the parsed payload of an inline button. The owner is always
// taken from the query sender, never from the payload.
type Callback struct {
	Kind       CallbackKind
	VideoID    string
	FormatID   string
	PlaylistID string
	Quality    string
	Language   string
}

// Encode renders the callback, failing if it does not fit in a button
func (c Callback) Encode() (string, error) {
	var fields []string
	switch c.Kind {
	case CallbackVideo:
		fields = []string{string(c.Kind), c.VideoID, c.FormatID, c.Quality}
	case CallbackPlaylist:
		fields = []string{string(c.Kind), c.PlaylistID, c.Quality}
	case CallbackFileList:
		fields = []string{string(c.Kind), c.Quality}
	case CallbackLanguage:
		fields = []string{string(c.Kind), c.Language}
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrBadCallback, c.Kind)
	}

	for _, f := range fields[1:] {
		if strings.Contains(f, callbackSeparator) {
			return "", fmt.Errorf("%w: field %q contains separator", ErrBadCallback, f)
		}
	}

	data := strings.Join(fields, callbackSeparator)
	if len(data) > MaxCallbackData {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrBadCallback, len(data), MaxCallbackData)
	}
	return data, nil
}

// ParseCallback validates and decodes a button payload
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, callbackSeparator)
	if len(parts) < 2 {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}

	c := Callback{Kind: CallbackKind(parts[0])}
	switch c.Kind {
	case CallbackVideo:
		if len(parts) != 4 || !platform.IsVideoID(parts[1]) || parts[3] == "" {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		c.VideoID, c.FormatID, c.Quality = parts[1], parts[2], parts[3]
	case CallbackPlaylist:
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		c.PlaylistID, c.Quality = parts[1], parts[2]
	case CallbackFileList:
		if len(parts) != 2 || parts[1] == "" {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		c.Quality = parts[1]
	case CallbackLanguage:
		if len(parts) != 2 || parts[1] == "" {
			return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		c.Language = parts[1]
	default:
		return Callback{}, fmt.Errorf("%w: unknown kind %q", ErrBadCallback, parts[0])
	}
	return c, nil
}
