package download

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
)

// Container and codec constants
const (
	VideoExtension    = "mp4"
	AudioExtension    = "mp3"
	AudioCodec        = "mp3"
	BestAudioSelector = "bestaudio/best"
	VideoFallback     = "+bestaudio/best"
	OutputExtPattern  = "%(ext)s"
)

// ladderHeights maps the fixed resolution ladder to its height ceiling
var ladderHeights = map[string]string{
	"480p":  "480",
	"720p":  "720",
	"1080p": "1080",
}

// heightLabel matches resolution labels such as "1440p"
var heightLabel = regexp.MustCompile(`^[1-9][0-9]{2,3}p$`)

// formatIDPattern matches extractor format identifiers such as "137" or "hls-720"
var formatIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// audioBitrates maps accepted audio labels to kbps
var audioBitrates = map[string]string{
	model.AudioQuality128: "128",
	"bestaudio_128":       "128",
	model.AudioQuality320: "320",
	"bestaudio_320":       "320",
}

// EncodeSpec is the extractor configuration of one rendition
type EncodeSpec struct {
	Kind              model.MediaKind
	Format            string
	Extension         string
	MergeOutputFormat string
	RecodeVideo       string
	AudioCodec        string
	AudioBitrate      string // kbps
}

// SelectEncodeSpec derives the extractor configuration from kind and quality.
// Ladder resolutions become a height ceiling. Any other video choice is fetched
// by formatID, or by quality itself when quality is a raw format id.
func SelectEncodeSpec(kind model.MediaKind, quality, formatID string) (EncodeSpec, error) {
	quality = strings.TrimSpace(quality)
	formatID = strings.TrimSpace(formatID)

	switch kind {
	case model.MediaAudio:
		bitrate, ok := audioBitrates[quality]
		if !ok {
			return EncodeSpec{}, fmt.Errorf("%w: unsupported audio quality %q", model.ErrInvalidInput, quality)
		}
		return EncodeSpec{
			Kind:         model.MediaAudio,
			Format:       BestAudioSelector,
			Extension:    AudioExtension,
			AudioCodec:   AudioCodec,
			AudioBitrate: bitrate,
		}, nil

	case model.MediaVideo:
		if quality == "" {
			return EncodeSpec{}, fmt.Errorf("%w: empty video quality", model.ErrInvalidInput)
		}
		format, err := videoFormat(quality, formatID)
		if err != nil {
			return EncodeSpec{}, err
		}
		return EncodeSpec{
			Kind:              model.MediaVideo,
			Format:            format,
			Extension:         VideoExtension,
			MergeOutputFormat: VideoExtension,
			RecodeVideo:       VideoExtension,
		}, nil

	default:
		return EncodeSpec{}, fmt.Errorf("%w: unknown media kind %q", model.ErrInvalidInput, kind)
	}
}

func videoFormat(quality, formatID string) (string, error) {
	if height, ok := ladderHeights[quality]; ok {
		return "bestvideo[height<=" + height + "]" + VideoFallback, nil
	}

	id := formatID
	if id == "" {
		if heightLabel.MatchString(quality) {
			return "", fmt.Errorf("%w: resolution %q is off the ladder and has no format id", model.ErrInvalidInput, quality)
		}
		id = quality
	}
	if !formatIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: bad format id %q", model.ErrInvalidInput, id)
	}
	return id + VideoFallback, nil
}

// FetchOptions renders an EncodeSpec as extractor options writing to outputTemplate
func (e EncodeSpec) FetchOptions(outputTemplate string, progress func(platform.FetchProgress)) platform.FetchOptions {
	opts := platform.FetchOptions{
		Format:            e.Format,
		MergeOutputFormat: e.MergeOutputFormat,
		RecodeVideo:       e.RecodeVideo,
		OutputTemplate:    outputTemplate,
		Progress:          progress,
	}
	if e.Kind == model.MediaAudio {
		opts.ExtractAudio = true
		opts.AudioFormat = e.AudioCodec
		opts.AudioQuality = e.AudioBitrate + "K"
	}
	return opts
}
