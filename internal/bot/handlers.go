package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-link-bot/internal/batch"
	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
)

// Commands understood by the bot
const (
	CommandStart          = "start"
	CommandHelp           = "help"
	CommandLanguage       = "language"
	CommandChangeLanguage = "change_language"
	CommandStats          = "stats"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	user, err := b.users.User(ctx, userID)
	if err != nil {
		log.Printf("[ERROR] lookup user %d: %v", userID, err)
		b.reply(chatID, textDownloadFailed)
		return
	}
	if user == nil {
		b.reply(chatID, textStartFirst)
		return
	}

	switch {
	case msg.Document != nil:
		b.handleDocument(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		b.handleLink(ctx, chatID, strings.TrimSpace(msg.Text))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	log.Printf("[DEBUG] command /%s from %d", msg.Command(), userID)

	switch msg.Command() {
	case CommandStart:
		existing, err := b.users.User(ctx, userID)
		if err != nil {
			log.Printf("[ERROR] lookup user %d: %v", userID, err)
		}
		if err := b.users.UpsertUser(ctx, userID, displayName(msg.From)); err != nil {
			log.Printf("[ERROR] register user %d: %v", userID, err)
		}
		out := tgbotapi.NewMessage(chatID, textWelcome)
		if existing == nil {
			if keyboard, ok := b.languageKeyboard(); ok {
				out.Text = textChooseLanguage
				out.ReplyMarkup = keyboard
			}
		}
		b.send(out)

	case CommandHelp:
		b.reply(chatID, textHelp)

	case CommandLanguage, CommandChangeLanguage:
		current, err := b.users.Language(ctx, userID)
		if err != nil {
			log.Printf("[ERROR] read language of %d: %v", userID, err)
			b.reply(chatID, textDownloadFailed)
			return
		}
		next := b.opts.NextLanguage(current)
		if err := b.users.SetLanguage(ctx, userID, next); err != nil {
			log.Printf("[ERROR] save language of %d: %v", userID, err)
			b.reply(chatID, textDownloadFailed)
			return
		}
		name := next
		if n, ok := b.opts.Languages[next]; ok {
			name = n
		}
		b.reply(chatID, fmt.Sprintf(textLanguageChanged, name))

	case CommandStats:
		if !b.opts.IsAdmin(userID) {
			return
		}
		stats, err := b.users.Stats(ctx)
		if err != nil {
			log.Printf("[ERROR] stats: %v", err)
			b.reply(chatID, textDownloadFailed)
			return
		}
		out := tgbotapi.NewMessage(chatID, formatStats(stats, b.downloads.GetActiveTasks()))
		out.ParseMode = tgbotapi.ModeHTML
		b.send(out)

	default:
		b.reply(chatID, textUnknownCommand)
	}
}

func (b *Bot) handleLink(ctx context.Context, chatID int64, text string) {
	switch platform.Classify(text) {
	case platform.LinkDisallowedPseudoPlaylist:
		b.reply(chatID, fmt.Sprintf(textDisallowed, platform.PseudoPlaylistName(text)))
	case platform.LinkPlaylist:
		b.offerPlaylist(ctx, chatID, text)
	case platform.LinkSingleVideo:
		b.offerVideo(ctx, chatID, text)
	default:
		b.reply(chatID, textInvalidLink)
	}
}

// offerVideo shows the cover with one button per available format
func (b *Bot) offerVideo(ctx context.Context, chatID int64, link string) {
	wait := b.reply(chatID, textLinkValid)
	details, err := b.resolver.ResolveVideo(ctx, link)
	b.delete(chatID, wait.MessageID)
	if err != nil {
		log.Printf("[WARN] resolve %s: %v", link, err)
		b.reply(chatID, textResolveFailed)
		return
	}

	keyboard, ok := videoKeyboard(details)
	if !ok {
		b.reply(chatID, textNoFormats)
		return
	}

	caption := fmt.Sprintf(textChooseQuality, details.Title)
	if details.ThumbnailURL == "" {
		out := tgbotapi.NewMessage(chatID, caption)
		out.ReplyMarkup = keyboard
		b.send(out)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(details.ThumbnailURL))
	photo.Caption = caption
	photo.ReplyMarkup = keyboard
	b.send(photo)
}

// offerPlaylist expands the playlist and asks for one quality for all of it
func (b *Bot) offerPlaylist(ctx context.Context, chatID int64, link string) {
	playlistID, err := platform.ExtractPlaylistID(link)
	if err != nil {
		b.reply(chatID, textInvalidLink)
		return
	}

	wait := b.reply(chatID, textPlaylistWait)
	urls, _, err := b.resolver.ResolvePlaylist(ctx, link)
	b.delete(chatID, wait.MessageID)
	if err != nil {
		log.Printf("[WARN] expand playlist %s: %v", link, err)
		b.reply(chatID, textPlaylistFailed)
		return
	}
	if len(urls) == 0 {
		b.reply(chatID, textPlaylistEmpty)
		return
	}

	keyboard, ok := batchKeyboard(func(res string) Callback {
		return Callback{Kind: CallbackPlaylist, PlaylistID: playlistID, Quality: res}
	})
	if !ok {
		b.reply(chatID, textPlaylistFailed)
		return
	}
	out := tgbotapi.NewMessage(chatID, fmt.Sprintf(textPlaylistCount, len(urls)))
	out.ReplyMarkup = keyboard
	b.send(out)
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document
	if !strings.EqualFold(filepath.Ext(doc.FileName), ".txt") || (doc.MimeType != "" && doc.MimeType != "text/plain") {
		b.reply(chatID, textFileOnlyTxt)
		return
	}

	links, err := b.readLinkList(ctx, doc.FileID)
	if err != nil {
		log.Printf("[WARN] read link list of %d: %v", msg.From.ID, err)
		b.reply(chatID, textFileReadFailed)
		return
	}
	if len(links) == 0 {
		b.reply(chatID, textFileNoLinks)
		return
	}
	b.setPending(msg.From.ID, links)

	keyboard, ok := batchKeyboard(func(res string) Callback {
		return Callback{Kind: CallbackFileList, Quality: res}
	})
	if !ok {
		b.reply(chatID, textFileReadFailed)
		return
	}
	out := tgbotapi.NewMessage(chatID, fmt.Sprintf(textFileCount, len(links)))
	out.ReplyMarkup = keyboard
	b.send(out)
}

func (b *Bot) readLinkList(ctx context.Context, fileID string) ([]string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	return batch.ParseLinkList(ctx, io.LimitReader(resp.Body, MaxLinkListSize), b.resolver)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		log.Printf("[DEBUG] answer callback %s: %v", cq.ID, err)
	}
	if cq.From == nil {
		return
	}

	cb, err := ParseCallback(cq.Data)
	if err != nil {
		log.Printf("[WARN] callback from %d: %v", cq.From.ID, err)
		return
	}

	ownerID := cq.From.ID
	chatID := ownerID
	selectionID := 0
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
		selectionID = cq.Message.MessageID
	}

	switch cb.Kind {
	case CallbackVideo:
		b.acquireVideo(ctx, chatID, ownerID, selectionID, cb)
	case CallbackPlaylist:
		b.delete(chatID, selectionID)
		b.runBatch(ctx, chatID, cb.Quality, func(progress batch.ProgressFunc) (*model.BatchReport, error) {
			return b.runner.RunPlaylist(ctx, ownerID, platform.PlaylistURL(cb.PlaylistID), cb.Quality, progress)
		})
	case CallbackFileList:
		links := b.takePending(ownerID)
		if len(links) == 0 {
			b.reply(chatID, textFileExpired)
			return
		}
		b.delete(chatID, selectionID)
		b.runBatch(ctx, chatID, cb.Quality, func(progress batch.ProgressFunc) (*model.BatchReport, error) {
			return b.runner.Run(ctx, ownerID, links, cb.Quality, progress), nil
		})
	case CallbackLanguage:
		if err := b.users.SetLanguage(ctx, ownerID, cb.Language); err != nil {
			log.Printf("[ERROR] save language of %d: %v", ownerID, err)
			return
		}
		b.edit(chatID, selectionID, textWelcome)
	}
}

func (b *Bot) acquireVideo(ctx context.Context, chatID, ownerID int64, selectionID int, cb Callback) {
	req := model.VideoRequest{
		SourceURL: platform.WatchURL(cb.VideoID),
		VideoID:   cb.VideoID,
		Quality:   cb.Quality,
		FormatID:  cb.FormatID,
		Kind:      model.KindForQuality(cb.Quality),
	}

	what := "video"
	if req.Kind == model.MediaAudio {
		what = "audio file"
	}
	wait := b.reply(chatID, fmt.Sprintf(textFetchStarted, what, req.Quality))

	outcome := b.downloads.Acquire(ctx, req.AcquireFor(ownerID))
	b.delete(chatID, wait.MessageID)

	if !outcome.Succeeded() {
		b.reply(chatID, failureText(outcome))
		return
	}
	b.delete(chatID, selectionID)
	b.sendLink(chatID, outcome)
}

func (b *Bot) sendLink(chatID int64, outcome *model.DownloadOutcome) {
	caption := formatLinkCaption(outcome, b.opts.Retention)
	if outcome.CoverURL == "" {
		b.reply(chatID, caption)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(outcome.CoverURL))
	photo.Caption = caption
	b.send(photo)
}

// runBatch reports per item progress and finishes with a document of all links
func (b *Bot) runBatch(ctx context.Context, chatID int64, quality string, run func(batch.ProgressFunc) (*model.BatchReport, error)) {
	status := b.reply(chatID, textPlaylistWait)
	started := false

	progress := func(pb *model.PlaylistBatch, item *model.BatchItem, outcome *model.DownloadOutcome) {
		if !started {
			b.edit(chatID, status.MessageID, fmt.Sprintf(textBatchStarted, pb.Total(), quality))
			started = true
		}
		if outcome.Succeeded() {
			b.sendLink(chatID, outcome)
		} else {
			b.reply(chatID, fmt.Sprintf(textBatchItemFailed, item.Index+1, failureText(outcome)))
		}
		b.edit(chatID, status.MessageID, fmt.Sprintf(textBatchProgress, pb.Done(), pb.Total()))
	}

	report, err := run(progress)
	if err != nil {
		log.Printf("[WARN] batch for chat %d: %v", chatID, err)
		b.edit(chatID, status.MessageID, textPlaylistFailed)
		return
	}
	if report.NothingToDo {
		b.edit(chatID, status.MessageID, textPlaylistEmpty)
		return
	}
	b.delete(chatID, status.MessageID)

	links := report.Batch.Links()
	if len(links) == 0 {
		b.reply(chatID, fmt.Sprintf(textBatchNone, report.Total))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  LinksFileName,
		Bytes: []byte(strings.Join(links, "\n") + "\n"),
	})
	doc.Caption = fmt.Sprintf(textBatchDone, report.Succeeded, report.Total, humanDuration(b.opts.Retention))
	b.send(doc)
}

func videoKeyboard(details *model.VideoDetails) (tgbotapi.InlineKeyboardMarkup, bool) {
	var buttons []tgbotapi.InlineKeyboardButton
	for _, f := range details.AvailableFormats {
		label := videoButtonFormat
		switch f.Extension {
		case "mp4", "webm":
		case "mp3":
			label = audioButtonFormat
		default:
			continue
		}
		data, err := Callback{Kind: CallbackVideo, VideoID: details.VideoID, FormatID: f.ID, Quality: f.Resolution}.Encode()
		if err != nil {
			log.Printf("[DEBUG] skipping format %s of %s: %v", f.ID, details.VideoID, err)
			continue
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf(label, f.Resolution, strings.ToUpper(f.Extension)), data))
	}
	if len(buttons) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows(buttons)...), true
}

func batchKeyboard(build func(res string) Callback) (tgbotapi.InlineKeyboardMarkup, bool) {
	var buttons []tgbotapi.InlineKeyboardButton
	for _, res := range BatchResolutions {
		data, err := build(res).Encode()
		if err != nil {
			log.Printf("[WARN] batch button %s: %v", res, err)
			return tgbotapi.InlineKeyboardMarkup{}, false
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf(videoButtonFormat, res, "MP4"), data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows(buttons)...), true
}

func (b *Bot) languageKeyboard() (tgbotapi.InlineKeyboardMarkup, bool) {
	codes := make([]string, 0, len(b.opts.Languages))
	for code := range b.opts.Languages {
		codes = append(codes, code)
	}
	if len(codes) < 2 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	sort.Strings(codes)

	var buttons []tgbotapi.InlineKeyboardButton
	for _, code := range codes {
		data, err := Callback{Kind: CallbackLanguage, Language: code}.Encode()
		if err != nil {
			continue
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.opts.Languages[code], data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows(buttons)...), len(buttons) > 0
}

func rows(buttons []tgbotapi.InlineKeyboardButton) [][]tgbotapi.InlineKeyboardButton {
	var out [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(buttons); i += buttonsPerRow {
		end := i + buttonsPerRow
		if end > len(buttons) {
			end = len(buttons)
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons[i:end]...))
	}
	return out
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
