// Package metadata resolves video details and playlist entries through the extractor.
package metadata

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
)

// Format selection constants
const (
	MinVideoHeight       = 360
	AudioFormatExtension = "mp3"
	AudioFormat128ID     = "bestaudio_128"
	AudioFormat320ID     = "bestaudio_320"
	JPGExtension         = ".jpg"
)

// Resolver fetches metadata without caching
type Resolver struct {
	extractor platform.Extractor
}

// NewResolver creates a resolver over the given extractor
func NewResolver(extractor platform.Extractor) *Resolver {
	return &Resolver{extractor: extractor}
}

// ResolveVideo returns title, cover and selectable renditions of a single video
func (r *Resolver) ResolveVideo(ctx context.Context, url string) (*model.VideoDetails, error) {
	info, err := r.extractor.Info(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrResolutionFailed, err)
	}
	if info == nil || info.ID == "" {
		return nil, fmt.Errorf("%w: no video id for %s", model.ErrResolutionFailed, url)
	}

	return &model.VideoDetails{
		VideoID:          info.ID,
		Title:            info.Title,
		ThumbnailURL:     SelectCover(info),
		AvailableFormats: SelectFormats(info.Formats),
	}, nil
}

// ResolvePlaylist returns the ordered watch URLs and id of a playlist.
// An empty playlist yields (nil, "", nil).
func (r *Resolver) ResolvePlaylist(ctx context.Context, url string) ([]string, string, error) {
	listing, err := r.extractor.PlaylistItems(ctx, url)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrResolutionFailed, err)
	}
	if listing == nil || len(listing.Entries) == 0 {
		log.Printf("[INFO] playlist %s has no entries", url)
		return nil, "", nil
	}
	return listing.URLs(), listing.ID, nil
}

// SelectFormats keeps one video-only stream per resolution above MinVideoHeight,
// ordered by height, followed by the two synthetic audio entries
func SelectFormats(formats []platform.RawFormat) []model.Format {
	byHeight := make(map[int]platform.RawFormat)
	for _, f := range formats {
		if !f.IsVideoOnly() || f.Height <= MinVideoHeight {
			continue
		}
		if cur, ok := byHeight[f.Height]; !ok || f.FormatID > cur.FormatID {
			byHeight[f.Height] = f
		}
	}

	heights := make([]int, 0, len(byHeight))
	for h := range byHeight {
		heights = append(heights, h)
	}
	sort.Ints(heights)

	out := make([]model.Format, 0, len(heights)+2)
	for _, h := range heights {
		f := byHeight[h]
		out = append(out, model.Format{
			ID:         f.FormatID,
			Extension:  f.Ext,
			Resolution: strconv.Itoa(h) + "p",
			Note:       f.FormatNote,
		})
	}

	out = append(out,
		model.Format{ID: AudioFormat128ID, Extension: AudioFormatExtension, Resolution: model.AudioQuality128},
		model.Format{ID: AudioFormat320ID, Extension: AudioFormatExtension, Resolution: model.AudioQuality320},
	)
	return out
}

// SelectCover picks the tallest jpg thumbnail, else the tallest thumbnail,
// else the top level thumbnail field
func SelectCover(info *platform.MediaInfo) string {
	if best, ok := tallest(info.Thumbnails, func(t platform.Thumbnail) bool {
		return strings.HasSuffix(strings.ToLower(t.URL), JPGExtension)
	}); ok {
		return best.URL
	}
	if best, ok := tallest(info.Thumbnails, func(t platform.Thumbnail) bool { return t.URL != "" }); ok {
		return best.URL
	}
	return info.Thumbnail
}

func tallest(thumbs []platform.Thumbnail, keep func(platform.Thumbnail) bool) (platform.Thumbnail, bool) {
	var best platform.Thumbnail
	found := false
	for _, t := range thumbs {
		if !keep(t) {
			continue
		}
		if !found || t.Height > best.Height {
			best = t
			found = true
		}
	}
	return best, found
}
