package download

// Package download implements the acquisition pipeline built on top of yt-dlp:
// resolve metadata, fetch and encode one rendition inside a bounded worker pool,
// place the artifact and record the link. Stage changes are propagated through an
// update callback.
