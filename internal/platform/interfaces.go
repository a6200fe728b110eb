package platform

import "context"

// Extractor defines the interface for the external media extractor.
type Extractor interface {
	// Info fetches metadata of a single video without downloading it
	Info(ctx context.Context, url string) (*MediaInfo, error)

	// Fetch downloads and encodes one rendition according to opts
	Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error)

	// PlaylistItems lists the entries of a playlist in order
	PlaylistItems(ctx context.Context, playlistURL string) (*PlaylistListing, error)
}
