package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/yt-link-bot/internal/bot"
	"github.com/ytget/yt-link-bot/internal/config"
	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
	"github.com/ytget/yt-link-bot/internal/reaper"
	"github.com/ytget/yt-link-bot/internal/web"
)

// UpdateTimeout is the long polling timeout in seconds
const UpdateTimeout = 60

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the link server and the retention reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.settings)
		},
	}
}

func serve(ctx context.Context, st *config.Settings) error {
	if err := st.ValidateServe(); err != nil {
		return err
	}

	if st.GetInstallYTDLP() {
		log.Printf("[INFO] installing yt-dlp...")
		if err := platform.InstallYTDLP(ctx); err != nil {
			return fmt.Errorf("install yt-dlp: %w", err)
		}
	}

	p, err := buildPipeline(ctx, st)
	if err != nil {
		return err
	}
	defer p.Close()

	api, err := tgbotapi.NewBotAPI(st.GetBotToken())
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Printf("[INFO] authorized on account @%s", api.Self.UserName)

	front := bot.New(api, p.store, p.resolver, p.service, bot.Options{
		IsAdmin:      st.IsAdmin,
		Retention:    st.GetRetention(),
		Languages:    st.GetLanguageOptions(),
		NextLanguage: config.NextLanguage,
	})
	sweeper := reaper.New(p.store, p.placer, p.locker, st.GetRetention(), st.GetSweepInterval())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	if p.signer != nil {
		srv := web.NewServer(st.GetDownloadDirectory(), p.signer, st.GetDebug())
		g.Go(func() error {
			return srv.Run(gctx, st.GetListenAddr())
		})
	}
	g.Go(func() error {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = UpdateTimeout
		updates := api.GetUpdatesChan(u)
		go func() {
			<-gctx.Done()
			api.StopReceivingUpdates()
		}()
		front.Run(gctx, updates)
		return nil
	})

	err = g.Wait()
	log.Printf("[INFO] shutdown complete")
	return err
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale download links once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := opts.settings
			store, err := openRegistry(st)
			if err != nil {
				return err
			}
			defer store.Close()

			placer, _, err := buildPlacer(cmd.Context(), st)
			if err != nil {
				return err
			}

			locker, closeLocker, err := buildLocker(cmd.Context(), st)
			if err != nil {
				return err
			}
			if closeLocker != nil {
				defer closeLocker()
			}

			report := reaper.New(store, placer, locker, st.GetRetention(), st.GetSweepInterval()).Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "stale: %d\ndeleted: %d\nalready gone: %d\nchanged: %d\nfailed: %d\nbucket objects expired: %d\n",
				report.Stale, report.Deleted, report.AlreadyGone, report.Changed, report.Failed, report.BucketExpired)
			return nil
		},
	}
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print user and link counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRegistry(opts.settings)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd, stats)
			return nil
		},
	}
}

func printStats(cmd *cobra.Command, stats *model.RegistryStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "users: %d\nlinks: %d\n", stats.Users, stats.TotalDownloads())

	statuses := make([]string, 0, len(stats.Downloads))
	for st := range stats.Downloads {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(out, "  %s: %d\n", st, stats.Downloads[model.RecordStatus(st)])
	}
}
