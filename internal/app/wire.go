package app

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/ytget/yt-link-bot/internal/config"
	"github.com/ytget/yt-link-bot/internal/download"
	"github.com/ytget/yt-link-bot/internal/lock"
	"github.com/ytget/yt-link-bot/internal/metadata"
	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
	"github.com/ytget/yt-link-bot/internal/probe"
	"github.com/ytget/yt-link-bot/internal/registry"
	"github.com/ytget/yt-link-bot/internal/storage"
)

// pipeline is everything the serve command runs
type pipeline struct {
	store    *registry.Store
	placer   storage.Placer
	signer   *storage.LinkSigner
	resolver *metadata.Resolver
	locker   lock.Locker
	service  *download.Service
	closers  []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			log.Printf("[WARN] close: %v", err)
		}
	}
}

func openRegistry(st *config.Settings) (*registry.Store, error) {
	store, err := registry.Open(st.GetDBDriver(), st.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	store.SetDefaultLanguage(st.GetDefaultLanguage())
	return store, nil
}

// buildPlacer returns the configured placer and, for local storage, the link signer
func buildPlacer(ctx context.Context, st *config.Settings) (storage.Placer, *storage.LinkSigner, error) {
	switch st.GetStorageBackend() {
	case config.StorageS3:
		s3cfg := st.GetS3()
		placer, err := storage.NewS3Placer(ctx, storage.S3Options{
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			PathStyle: s3cfg.PathStyle,
			TTL:       st.GetRetention(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("s3 placer: %w", err)
		}
		log.Printf("[INFO] placing artifacts in bucket %s", s3cfg.Bucket)
		return placer, nil, nil
	default:
		signer := storage.NewLinkSigner(st.GetLinkSecret())
		log.Printf("[INFO] serving artifacts from %s via %s", st.GetDownloadDirectory(), st.GetPublicBaseURL())
		return storage.NewLocalPlacer(st.GetPublicBaseURL(), signer, st.GetRetention()), signer, nil
	}
}

// buildLocker returns a redis locker when redis is configured, else nil
func buildLocker(ctx context.Context, st *config.Settings) (lock.Locker, func() error, error) {
	rs := st.GetRedis()
	if rs.Addr == "" {
		return nil, nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     rs.Addr,
		Password: rs.Password,
		DB:       rs.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", rs.Addr, err)
	}
	log.Printf("[INFO] using redis locks at %s", rs.Addr)
	return lock.NewRedisLocker(rdb, lock.DefaultLockTTL), rdb.Close, nil
}

func buildPipeline(ctx context.Context, st *config.Settings) (*pipeline, error) {
	p := &pipeline{}

	store, err := openRegistry(st)
	if err != nil {
		return nil, err
	}
	p.store = store
	p.closers = append(p.closers, store.Close)

	placer, signer, err := buildPlacer(ctx, st)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.placer, p.signer = placer, signer

	locker, closeLocker, err := buildLocker(ctx, st)
	if err != nil {
		p.Close()
		return nil, err
	}
	if closeLocker != nil {
		p.closers = append(p.closers, closeLocker)
	}
	if locker == nil {
		locker = lock.NewKeyLocker()
	}
	p.locker = locker

	extractor := platform.NewYTDLPClient()
	extractor.SetTimeout(st.GetExtractTimeout())
	p.resolver = metadata.NewResolver(extractor)

	deps := download.Dependencies{
		Resolver:  p.resolver,
		Extractor: extractor,
		Registry:  store,
		Placer:    placer,
		Locker:    locker,
	}
	if st.GetProbeArtifacts() {
		deps.Prober = probe.NewFFprobe()
	}

	if err := platform.CreateDirectoryIfNotExists(st.GetDownloadDirectory()); err != nil {
		p.Close()
		return nil, fmt.Errorf("download dir: %w", err)
	}
	p.service = download.NewService(st.GetDownloadDirectory(), st.GetMaxParallelDownloads(), deps)
	p.service.SetUpdateCallback(func(task *model.DownloadTask) {
		log.Printf("[DEBUG] %s %s: %s %d%%", task.ID, task.GetDisplayTitle(), task.Stage, task.Percent)
	})
	return p, nil
}
