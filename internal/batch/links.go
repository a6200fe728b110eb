package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ytget/yt-link-bot/internal/platform"
)

// List markers whose links are kept as single videos
var singleVideoLists = []string{"list=WL", "list=RD", "list=history"}

// MaxLinkLineLength bounds one line of an uploaded link list
const MaxLinkLineLength = 4096

// ParseLinkList reads one link per line and returns the video URLs to fetch, in order.
// Mixes and account bound lists are cut down to their video, playlists are expanded,
// anything that is not a link is skipped.
func ParseLinkList(ctx context.Context, r io.Reader, expander PlaylistExpander) ([]string, error) {
	var links []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), MaxLinkLineLength)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case hasSingleVideoList(line):
			single := platform.StripPlaylistParam(line)
			if platform.Classify(single) == platform.LinkSingleVideo {
				links = append(links, single)
			}

		case platform.Classify(line) == platform.LinkPlaylist:
			urls, _, err := expander.ResolvePlaylist(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Printf("[WARN] skipping playlist %s: %v", line, err)
				continue
			}
			links = append(links, urls...)

		case platform.Classify(line) == platform.LinkSingleVideo:
			links = append(links, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read link list: %w", err)
	}
	return links, nil
}

func hasSingleVideoList(line string) bool {
	for _, marker := range singleVideoLists {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
