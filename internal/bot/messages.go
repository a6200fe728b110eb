package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
)

// User facing texts
const (
	textWelcome         = "Hello, welcome to the YouTube link bot!\n\nSend a YouTube video or playlist link.\n------------------------\nBot usage guide: /help"
	textChooseLanguage  = "Hello, welcome to the YouTube link bot!\n\nPlease choose your language first."
	textStartFirst      = "First, use the /start command."
	textInvalidLink     = "Please enter a valid YouTube link."
	textDisallowed      = "The link you sent is related to %s. Currently, we cannot handle videos in this link.\nPlease send a single video or playlist link."
	textLinkValid       = "The link is valid.\n\nPlease wait a few moments for the video details to be displayed."
	textChooseQuality   = "Video title:\n%s\n\nPlease choose your preferred quality:"
	textNoFormats       = "No downloadable formats were found for this video."
	textResolveFailed   = "Could not read this video. Please check the link and try again."
	textFetchStarted    = "Download of %s with quality %s started.\nPlease wait..."
	textDownloadFailed  = "An error occurred while downloading the file. Please try again."
	textQualityInvalid  = "This quality is not available. Please choose another one."
	textPlaylistWait    = "Please wait a moment. The playlist is being processed..."
	textPlaylistFailed  = "An error occurred while processing the playlist. Please try again."
	textPlaylistEmpty   = "No videos were found in this playlist."
	textPlaylistCount   = "Number of videos in the playlist: %d\n\nPlease choose the download quality for all videos:"
	textBatchStarted    = "Downloading %d videos with quality %s started.\nPlease wait..."
	textBatchProgress   = "Processed %d of %d videos..."
	textBatchItemFailed = "Video %d could not be downloaded: %s"
	textBatchDone       = "%d of %d videos are ready.\n\nThis file contains all download links. They are valid for %s."
	textBatchNone       = "None of the %d videos could be downloaded. Please try again."
	textFileOnlyTxt     = "Please make sure to send a file with a .txt extension."
	textFileReadFailed  = "Could not read the file. Please send it again."
	textFileNoLinks     = "No valid links were found in the file."
	textFileCount       = "Number of correct links sent: %d.\n\nPlease choose the download quality for all videos:"
	textFileExpired     = "No download link was found.\nPlease resend the file with a .txt extension."
	textLanguageChanged = "Bot language changed to %s."
	textUnknownCommand  = "Unknown command. Use /help for guidance."
)

const textHelp = "To use the YouTube link bot, send one of the following:\n\n" +
	"1. A regular YouTube video link:\nhttps://www.youtube.com/watch?v=xxxxxxxx\nhttps://youtu.be/xxxxxxxx\n\n" +
	"2. A YouTube playlist link:\nhttps://www.youtube.com/playlist?list=PLxxxxxxxx\n\n" +
	"Watch Later (list=WL) and Liked Videos (list=LL) links are not supported.\n\n" +
	"You can also send a .txt file with one link per line.\n\n" +
	"After you choose a quality, the bot replies with a direct download link."

// Button labels
const (
	videoButtonFormat = "🎬 %s - %s"
	audioButtonFormat = "🎵 %s - %s"
	buttonsPerRow     = 2
)

// BatchResolutions are offered for playlists and link lists
var BatchResolutions = []string{"480p", "720p", "1080p"}

// LinksFileName is the document sent at the end of a batch
const LinksFileName = "dl_links.txt"

func formatLinkCaption(outcome *model.DownloadOutcome, retention time.Duration) string {
	size := platform.FormatFileSize(outcome.FileSize)
	return fmt.Sprintf("Video title:\n%s\n\nDownload link (%s - %s):\n%s\n\nThis link is valid for %s.",
		outcome.Title, size, outcome.Quality, outcome.FileURL, humanDuration(retention))
}

func failureText(outcome *model.DownloadOutcome) string {
	if outcome != nil && outcome.Reason == model.ReasonInvalidInput {
		return textQualityInvalid
	}
	return textDownloadFailed
}

func formatStats(stats *model.RegistryStats, active []*model.DownloadTask) string {
	var b strings.Builder
	b.WriteString("📊 <b>Bot statistics</b>\n\n")
	fmt.Fprintf(&b, "👥 Users: <b>%d</b>\n", stats.Users)
	fmt.Fprintf(&b, "🎥 Links: <b>%d</b>\n", stats.TotalDownloads())

	statuses := make([]string, 0, len(stats.Downloads))
	for st := range stats.Downloads {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(&b, "  • %s: %d\n", html.EscapeString(st), stats.Downloads[model.RecordStatus(st)])
	}

	fmt.Fprintf(&b, "\n⏳ In flight: <b>%d</b>\n", len(active))
	for _, task := range active {
		fmt.Fprintf(&b, "  • %s (%s, %d%%)\n", html.EscapeString(task.GetDisplayTitle()), task.Stage, task.Percent)
	}
	return b.String()
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a limited time"
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
