package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// Timeout constants
const (
	DefaultInfoTimeout      = 60 * time.Second
	DefaultProgressInterval = 500 * time.Millisecond
)

// Codec value yt-dlp reports for an absent stream
const CodecNone = "none"

// Thumbnail is one cover image candidate
type Thumbnail struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// RawFormat is one stream as reported by yt-dlp
type RawFormat struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
	Height     int    `json:"height"`
	FormatNote string `json:"format_note"`
}

// IsVideoOnly reports whether the stream carries video without audio
func (f RawFormat) IsVideoOnly() bool {
	return f.VCodec != "" && f.VCodec != CodecNone && f.ACodec == CodecNone
}

// MediaInfo is the subset of yt-dlp metadata the bot relies on
type MediaInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Thumbnail  string      `json:"thumbnail"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	Formats    []RawFormat `json:"formats"`
}

// FetchProgress is a progress snapshot of a running fetch
type FetchProgress struct {
	Percent float64 // 0 to 100
	ETA     time.Duration
	Title   string
}

// FetchOptions selects the rendition and where it is written
type FetchOptions struct {
	Format            string // yt-dlp format selector
	MergeOutputFormat string // container for merged video+audio
	RecodeVideo       string // target container of the video convertor
	ExtractAudio      bool
	AudioFormat       string
	AudioQuality      string // e.g. "320K"
	OutputTemplate    string // full output path, may contain %(ext)s
	Progress          func(FetchProgress)
}

// FetchResult describes what yt-dlp reported after the fetch
type FetchResult struct {
	Filename string
}

// YTDLPClient implements Extractor on top of the yt-dlp binary
type YTDLPClient struct {
	infoTimeout time.Duration
	playlists   *YTDLPParserService
}

// NewYTDLPClient creates a new extractor client
func NewYTDLPClient() *YTDLPClient {
	return &YTDLPClient{
		infoTimeout: DefaultInfoTimeout,
		playlists:   NewYTDLPParserService(),
	}
}

// SetTimeout sets the timeout for metadata and playlist calls
func (c *YTDLPClient) SetTimeout(timeout time.Duration) {
	c.infoTimeout = timeout
	c.playlists.SetTimeout(timeout)
}

// Info runs yt-dlp in single JSON dump mode and decodes its output
func (c *YTDLPClient) Info(ctx context.Context, url string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.infoTimeout)
	defer cancel()

	result, err := ytdlp.New().
		NoPlaylist().
		SkipDownload().
		DumpSingleJSON().
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to extract info for %s: %w", url, err)
	}

	return ParseMediaInfo(result.Stdout)
}

// Fetch downloads one rendition of url
func (c *YTDLPClient) Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	dl := ytdlp.New().
		NoPlaylist().
		ForceOverwrites().
		Output(opts.OutputTemplate)

	if opts.Format != "" {
		dl.Format(opts.Format)
	}
	if opts.MergeOutputFormat != "" {
		dl.MergeOutputFormat(opts.MergeOutputFormat)
	}
	if opts.RecodeVideo != "" {
		dl.RecodeVideo(opts.RecodeVideo)
	}
	if opts.ExtractAudio {
		dl.ExtractAudio()
		if opts.AudioFormat != "" {
			dl.AudioFormat(opts.AudioFormat)
		}
		if opts.AudioQuality != "" {
			dl.AudioQuality(opts.AudioQuality)
		}
	}

	if opts.Progress != nil {
		dl.ProgressFunc(DefaultProgressInterval, func(update ytdlp.ProgressUpdate) {
			opts.Progress(progressFromUpdate(&update))
		})
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	fr := &FetchResult{}
	info, err := result.GetExtractedInfo()
	if err != nil {
		log.Printf("[DEBUG] no extracted info for %s: %v", url, err)
		return fr, nil
	}
	if len(info) > 0 && info[0].Filename != nil {
		fr.Filename = *info[0].Filename
	}
	return fr, nil
}

// PlaylistItems lists playlist entries through the playlist parser
func (c *YTDLPClient) PlaylistItems(ctx context.Context, playlistURL string) (*PlaylistListing, error) {
	return c.playlists.ParsePlaylist(ctx, playlistURL)
}

// ParseMediaInfo decodes the JSON document printed by yt-dlp
func ParseMediaInfo(output string) (*MediaInfo, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, fmt.Errorf("empty extractor output")
	}

	var info MediaInfo
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		return nil, fmt.Errorf("failed to decode extractor output: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("extractor output has no video id")
	}
	return &info, nil
}

func progressFromUpdate(update *ytdlp.ProgressUpdate) FetchProgress {
	p := FetchProgress{}
	if update.TotalBytes > 0 {
		p.Percent = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
	}
	if eta := update.ETA(); eta > 0 {
		p.ETA = eta
	}
	if update.Info != nil && update.Info.Title != nil {
		p.Title = *update.Info.Title
	}
	return p
}

// InstallYTDLP makes sure a yt-dlp binary is available, downloading it when missing
func InstallYTDLP(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("failed to install yt-dlp: %w", err)
	}
	return nil
}
