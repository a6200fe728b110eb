// Package bot is the Telegram front-end: it routes links and button presses
// to the acquisition pipeline and replies with download links.
package bot

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-link-bot/internal/batch"
	"github.com/ytget/yt-link-bot/internal/model"
)

// Link list upload limits
const (
	DocumentFetchTimeout = 30 * time.Second
	MaxLinkListSize      = 1 << 20
)

// API is the subset of the Telegram client the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Users is the registry view of chat users
type Users interface {
	UpsertUser(ctx context.Context, userID int64, displayName string) error
	User(ctx context.Context, userID int64) (*model.User, error)
	Language(ctx context.Context, userID int64) (string, error)
	SetLanguage(ctx context.Context, userID int64, lang string) error
	Stats(ctx context.Context) (*model.RegistryStats, error)
}

// Resolver reads video and playlist metadata
type Resolver interface {
	ResolveVideo(ctx context.Context, url string) (*model.VideoDetails, error)
	ResolvePlaylist(ctx context.Context, url string) ([]string, string, error)
}

// Downloads runs acquisitions and reports in-flight work
type Downloads interface {
	Acquire(ctx context.Context, req model.AcquireRequest) *model.DownloadOutcome
	GetActiveTasks() []*model.DownloadTask
}

// Options tune the front-end
type Options struct {
	IsAdmin      func(userID int64) bool
	Retention    time.Duration
	Languages    map[string]string // code -> display name
	NextLanguage func(current string) string
	HTTPClient   *http.Client
}

// Bot handles Telegram updates
type Bot struct {
	api       API
	users     Users
	resolver  Resolver
	downloads Downloads
	runner    *batch.Runner
	opts      Options

	pendingMu sync.Mutex
	pending   map[int64][]string // uploaded link lists waiting for a quality
}

// New creates the front-end
func New(api API, users Users, resolver Resolver, downloads Downloads, opts Options) *Bot {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64) bool { return false }
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DocumentFetchTimeout}
	}
	if opts.NextLanguage == nil {
		opts.NextLanguage = func(current string) string { return current }
	}
	return &Bot{
		api:       api,
		users:     users,
		resolver:  resolver,
		downloads: downloads,
		runner:    batch.NewRunner(downloads, resolver),
		opts:      opts,
		pending:   make(map[int64][]string),
	}
}

// Run handles updates until ctx is done or the channel closes. Every update
// gets its own goroutine; Run waits for them before returning.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	var wg sync.WaitGroup
	defer wg.Wait()

	log.Printf("[INFO] bot is listening for updates")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// HandleUpdate routes a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] panic while handling update %d: %v", update.UpdateID, r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) tgbotapi.Message {
	msg, err := b.api.Send(c)
	if err != nil {
		log.Printf("[WARN] telegram send failed: %v", err)
	}
	return msg
}

func (b *Bot) reply(chatID int64, text string) tgbotapi.Message {
	return b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) delete(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Printf("[DEBUG] delete message %d failed: %v", messageID, err)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		log.Printf("[DEBUG] edit message %d failed: %v", messageID, err)
	}
}

func (b *Bot) setPending(ownerID int64, links []string) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pending[ownerID] = links
}

func (b *Bot) takePending(ownerID int64) []string {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	links := b.pending[ownerID]
	delete(b.pending, ownerID)
	return links
}
