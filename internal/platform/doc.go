// Package platform contains external tooling glue: YouTube link classification,
// the yt-dlp extractor adapter, playlist expansion and artifact file helpers.
package platform
