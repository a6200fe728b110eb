package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-link-bot/internal/lock"
	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
	"github.com/ytget/yt-link-bot/internal/storage"
)

type fakeResolver struct {
	details map[string]*model.VideoDetails
	err     error
}

func (f *fakeResolver) ResolveVideo(ctx context.Context, url string) (*model.VideoDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := platform.ExtractVideoID(url)
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return &model.VideoDetails{VideoID: id, Title: "Clip " + id}, nil
}

type fetchCall struct {
	URL          string
	Opts         platform.FetchOptions
	FilesAtStart []string
}

type fakeExtractor struct {
	mu        sync.Mutex
	calls     []fetchCall
	err       error
	noOutput  bool
	delay     time.Duration
	active    int32
	maxActive int32
}

func (f *fakeExtractor) Info(ctx context.Context, url string) (*platform.MediaInfo, error) {
	return nil, errors.New("not used")
}

func (f *fakeExtractor) PlaylistItems(ctx context.Context, url string) (*platform.PlaylistListing, error) {
	return nil, errors.New("not used")
}

func (f *fakeExtractor) Fetch(ctx context.Context, url string, opts platform.FetchOptions) (*platform.FetchResult, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxActive, m, n) {
			break
		}
	}

	dir := filepath.Dir(opts.OutputTemplate)
	var existing []string
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			existing = append(existing, e.Name())
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{URL: url, Opts: opts, FilesAtStart: existing})
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if opts.Progress != nil {
		opts.Progress(platform.FetchProgress{Percent: 50, ETA: 3 * time.Second})
	}
	if f.noOutput {
		return &platform.FetchResult{}, nil
	}

	ext := opts.MergeOutputFormat
	if opts.ExtractAudio {
		ext = opts.AudioFormat
	}
	out := strings.Replace(opts.OutputTemplate, OutputExtPattern, ext, 1)
	if err := os.WriteFile(out, []byte(opts.Format), 0644); err != nil {
		return nil, err
	}
	return &platform.FetchResult{Filename: out}, nil
}

func (f *fakeExtractor) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

type fakeRegistry struct {
	mu      sync.Mutex
	rows    map[string]model.DownloadRecord
	history []model.RecordStatus
	err     error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{rows: make(map[string]model.DownloadRecord)}
}

func (f *fakeRegistry) UpsertDownload(ctx context.Context, rec *model.DownloadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows[lock.Key(rec.UserID, rec.VideoID)] = *rec
	f.history = append(f.history, rec.Status)
	return nil
}

func (f *fakeRegistry) Row(owner int64, videoID string) (model.DownloadRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[lock.Key(owner, videoID)]
	return r, ok
}

func (f *fakeRegistry) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type failingPlacer struct{}

func (failingPlacer) Place(ctx context.Context, ownerID int64, localPath string) (*storage.Placement, error) {
	return nil, errors.New("bucket unreachable")
}

func (failingPlacer) Remove(ctx context.Context, location string) error { return nil }

type fakeProber struct{ err error }

func (p fakeProber) Check(ctx context.Context, path string) (time.Duration, error) {
	if p.err != nil {
		return 0, p.err
	}
	return time.Minute, nil
}

type fixture struct {
	dir       string
	service   *Service
	extractor *fakeExtractor
	registry  *fakeRegistry
	stages    []model.Stage
	mu        sync.Mutex
}

func newFixture(t *testing.T, maxParallel int) *fixture {
	t.Helper()
	f := &fixture{
		dir:       t.TempDir(),
		extractor: &fakeExtractor{},
		registry:  newFakeRegistry(),
	}
	placer := storage.NewLocalPlacer("http://bot.test", storage.NewLinkSigner("secret"), time.Hour)
	f.service = NewService(f.dir, maxParallel, Dependencies{
		Resolver: &fakeResolver{details: map[string]*model.VideoDetails{
			"abc123def45": {VideoID: "abc123def45", Title: "My Clip", ThumbnailURL: "https://i.ytimg.com/c.jpg"},
		}},
		Extractor: f.extractor,
		Registry:  f.registry,
		Placer:    placer,
	})
	f.service.SetUpdateCallback(func(task *model.DownloadTask) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if n := len(f.stages); n == 0 || f.stages[n-1] != task.Stage {
			f.stages = append(f.stages, task.Stage)
		}
	})
	return f
}

const testVideoURL = "https://www.youtube.com/watch?v=abc123def45"

func TestAcquire_Success(t *testing.T) {
	f := newFixture(t, 2)

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome)
	assert.Equal(t, "abc123def45", outcome.VideoID)
	assert.Equal(t, "My Clip", outcome.Title)
	assert.Equal(t, "my-clip_abc123def45.mp4", outcome.FileName)
	assert.Equal(t, "720p", outcome.Quality)
	assert.Equal(t, "https://i.ytimg.com/c.jpg", outcome.CoverURL)
	assert.True(t, strings.HasPrefix(outcome.FileURL, "http://bot.test/dls/42/my-clip_abc123def45.mp4?token="))

	row, ok := f.registry.Row(42, "abc123def45")
	require.True(t, ok)
	assert.Equal(t, model.RecordStatusDownloaded, row.Status)
	assert.Equal(t, filepath.Join(f.dir, "42", "my-clip_abc123def45.mp4"), row.FilePath)
	assert.Equal(t, "mp4", row.Extension)
	assert.Equal(t, []model.RecordStatus{model.RecordStatusPending, model.RecordStatusDownloaded}, f.registry.history)

	assert.Equal(t, []model.Stage{
		model.StageRequested, model.StageResolving, model.StageFetching, model.StagePlacing, model.StageCompleted,
	}, f.stages)

	calls := f.extractor.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "bestvideo[height<=720]+bestaudio/best", calls[0].Opts.Format)
	assert.Empty(t, f.service.GetActiveTasks())
}

func TestAcquire_BareVideoID(t *testing.T) {
	f := newFixture(t, 1)
	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 1, URL: "abc123def45", Kind: model.MediaAudio, Quality: "128kbps",
	})
	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome)
	assert.Equal(t, "my-clip_abc123def45.mp3", outcome.FileName)
	assert.Equal(t, testVideoURL, f.extractor.Calls()[0].URL)
}

func TestAcquire_ReRequestReplacesArtifact(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	first := f.service.Acquire(ctx, model.AcquireRequest{OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p"})
	require.True(t, first.Succeeded())

	second := f.service.Acquire(ctx, model.AcquireRequest{OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "1080p"})
	require.True(t, second.Succeeded())

	calls := f.extractor.Calls()
	require.Len(t, calls, 2)
	for _, name := range calls[1].FilesAtStart {
		assert.NotContains(t, name, "abc123def45", "previous artifact must be removed before the second fetch")
	}

	assert.Equal(t, 1, f.registry.Len())
	row, _ := f.registry.Row(42, "abc123def45")
	assert.Equal(t, model.RecordStatusDownloaded, row.Status)

	content, err := os.ReadFile(row.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "bestvideo[height<=1080]+bestaudio/best", string(content))
}

func TestAcquire_OffLadderUsesFormatID(t *testing.T) {
	f := newFixture(t, 1)

	req := model.VideoRequest{
		SourceURL: testVideoURL, VideoID: "abc123def45", Quality: "1440p", FormatID: "400",
	}
	outcome := f.service.Acquire(context.Background(), req.AcquireFor(42))
	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome)
	assert.Equal(t, "1440p", outcome.Quality)

	calls := f.extractor.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "400+bestaudio/best", calls[0].Opts.Format)
}

func TestAcquire_ConcurrentSameKeySerialized(t *testing.T) {
	f := newFixture(t, 4)
	f.extractor.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	outcomes := make([]*model.DownloadOutcome, 3)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = f.service.Acquire(context.Background(), model.AcquireRequest{
				OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
			})
		}(i)
	}
	wg.Wait()

	for _, o := range outcomes {
		assert.True(t, o.Succeeded())
	}
	assert.Equal(t, int32(1), f.extractor.maxActive)
	assert.Equal(t, 1, f.registry.Len())
}

func TestAcquire_PoolBoundsDifferentKeys(t *testing.T) {
	f := newFixture(t, 1)
	f.extractor.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for _, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			o := f.service.Acquire(context.Background(), model.AcquireRequest{
				OwnerID: 42, URL: platform.WatchURL(id), Kind: model.MediaVideo, Quality: "480p",
			})
			assert.True(t, o.Succeeded())
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.extractor.maxActive)
	assert.Equal(t, 3, f.registry.Len())
}

func TestAcquire_InvalidQuality(t *testing.T) {
	f := newFixture(t, 1)

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaAudio, Quality: "999kbps",
	})

	assert.False(t, outcome.Succeeded())
	assert.Equal(t, model.ReasonInvalidInput, outcome.Reason)
	assert.False(t, outcome.Retryable)
	assert.Empty(t, f.extractor.Calls())
	assert.Equal(t, 0, f.registry.Len())
}

func TestAcquire_ResolutionFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.service.deps.Resolver = &fakeResolver{err: model.ErrResolutionFailed}

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	assert.Equal(t, model.RecordStatusFailed, outcome.Status)
	assert.Equal(t, model.ReasonResolutionFailed, outcome.Reason)
	assert.Equal(t, 0, f.registry.Len())
}

func TestAcquire_FetchFailureRecordsFailed(t *testing.T) {
	f := newFixture(t, 1)
	f.extractor.err = errors.New("HTTP Error 403")

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	assert.Equal(t, model.ReasonDownloadFailed, outcome.Reason)
	assert.True(t, outcome.Retryable)
	row, ok := f.registry.Row(42, "abc123def45")
	require.True(t, ok)
	assert.Equal(t, model.RecordStatusFailed, row.Status)
	assert.Empty(t, row.FilePath)
	assert.Equal(t, model.StageFailed, f.stages[len(f.stages)-1])
}

func TestAcquire_MissingOutput(t *testing.T) {
	f := newFixture(t, 1)
	f.extractor.noOutput = true

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	assert.Equal(t, model.ReasonDownloadFailed, outcome.Reason)
	row, _ := f.registry.Row(42, "abc123def45")
	assert.Equal(t, model.RecordStatusFailed, row.Status)
}

func TestAcquire_ProbeFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.service.deps.Prober = fakeProber{err: errors.New("moov atom not found")}

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	assert.Equal(t, model.ReasonDownloadFailed, outcome.Reason)
	entries, _ := os.ReadDir(filepath.Join(f.dir, "42"))
	assert.Empty(t, entries, "broken artifact should be cleaned up")
}

func TestAcquire_PlacementFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.service.deps.Placer = failingPlacer{}

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	assert.Equal(t, model.ReasonPlacementFailed, outcome.Reason)
	row, _ := f.registry.Row(42, "abc123def45")
	assert.Equal(t, model.RecordStatusFailed, row.Status)
}

func TestAcquire_RegistryUnavailable(t *testing.T) {
	f := newFixture(t, 1)
	f.registry.err = model.ErrStorageUnavailable

	outcome := f.service.Acquire(context.Background(), model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	assert.Equal(t, model.ReasonStorageUnavailable, outcome.Reason)
	assert.Empty(t, f.extractor.Calls())
}

func TestAcquire_Cancelled(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := f.service.Acquire(ctx, model.AcquireRequest{
		OwnerID: 42, URL: testVideoURL, Kind: model.MediaVideo, Quality: "720p",
	})

	assert.Equal(t, model.RecordStatusFailed, outcome.Status)
	for _, st := range f.registry.history {
		assert.NotEqual(t, model.RecordStatusDownloaded, st)
	}
	row, ok := f.registry.Row(42, "abc123def45")
	if ok {
		assert.Equal(t, model.RecordStatusFailed, row.Status, "row must not stay pending")
	}
}

func TestGenerateTaskID(t *testing.T) {
	a, b := generateTaskID(), generateTaskID()
	assert.True(t, strings.HasPrefix(a, TaskIDPrefix))
	assert.NotEqual(t, a, b)
}
