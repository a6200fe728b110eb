package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ytget/yt-link-bot/internal/lock"
	"github.com/ytget/yt-link-bot/internal/model"
	"github.com/ytget/yt-link-bot/internal/platform"
	"github.com/ytget/yt-link-bot/internal/probe"
	"github.com/ytget/yt-link-bot/internal/storage"
)

// TaskIDPrefix prefixes generated task ids
const TaskIDPrefix = "acquire-"

// Resolver resolves video metadata
type Resolver interface {
	ResolveVideo(ctx context.Context, url string) (*model.VideoDetails, error)
}

// Registry records link state
type Registry interface {
	UpsertDownload(ctx context.Context, rec *model.DownloadRecord) error
}

// Dependencies are the collaborators of the orchestrator
type Dependencies struct {
	Resolver  Resolver
	Extractor platform.Extractor
	Registry  Registry
	Placer    storage.Placer
	Locker    lock.Locker  // defaults to an in-process KeyLocker
	Prober    probe.Prober // optional
}

// Service orchestrates acquisitions
type Service struct {
	tasks       map[string]*model.DownloadTask
	tasksMutex  sync.RWMutex
	maxParallel int
	pool        *semaphore.Weighted
	downloadDir string
	deps        Dependencies
	onUpdate    func(*model.DownloadTask) // callback for stage updates
}

// NewService creates a new download service
func NewService(downloadDir string, maxParallel int, deps Dependencies) *Service {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyLocker()
	}
	return &Service{
		tasks:       make(map[string]*model.DownloadTask),
		maxParallel: maxParallel,
		pool:        semaphore.NewWeighted(int64(maxParallel)),
		downloadDir: downloadDir,
		deps:        deps,
	}
}

// SetUpdateCallback sets the callback function for task updates
func (s *Service) SetUpdateCallback(callback func(*model.DownloadTask)) {
	s.onUpdate = callback
}

// MaxParallel returns the size of the fetch pool
func (s *Service) MaxParallel() int {
	return s.maxParallel
}

// GetTask returns an in-flight task by ID
func (s *Service) GetTask(id string) (*model.DownloadTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	task, exists := s.tasks[id]
	if !exists {
		return nil, false
	}
	snapshot := *task
	return &snapshot, true
}

// GetActiveTasks returns snapshots of all in-flight tasks
func (s *Service) GetActiveTasks() []*model.DownloadTask {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	tasks := make([]*model.DownloadTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		snapshot := *task
		tasks = append(tasks, &snapshot)
	}
	return tasks
}

// Acquire produces a download link for one video. It never returns an error;
// failures are reported in the outcome.
func (s *Service) Acquire(ctx context.Context, req model.AcquireRequest) *model.DownloadOutcome {
	task := s.startTask(req)
	defer s.finishTask(task)

	spec, err := SelectEncodeSpec(req.Kind, req.Quality, req.FormatID)
	if err != nil {
		return s.fail(ctx, task, nil, err)
	}

	url := strings.TrimSpace(req.URL)
	if platform.IsVideoID(url) {
		url = platform.WatchURL(url)
	}
	if url == "" {
		return s.fail(ctx, task, nil, fmt.Errorf("%w: empty url", model.ErrInvalidInput))
	}

	s.setStage(task, model.StageResolving)
	details, err := s.deps.Resolver.ResolveVideo(ctx, url)
	if err != nil {
		return s.fail(ctx, task, nil, err)
	}

	title := details.Title
	if title == "" {
		title = details.VideoID
	}
	s.updateTask(task, func(t *model.DownloadTask) {
		t.VideoID = details.VideoID
		t.Title = title
	})

	rec := &model.DownloadRecord{
		UserID:    req.OwnerID,
		VideoID:   details.VideoID,
		Title:     title,
		Extension: spec.Extension,
	}

	unlock, err := s.deps.Locker.Lock(ctx, lock.Key(req.OwnerID, details.VideoID))
	if err != nil {
		// the row belongs to whoever holds the lock
		outcome := s.fail(ctx, task, nil, err)
		outcome.VideoID = rec.VideoID
		outcome.Title = rec.Title
		return outcome
	}
	defer unlock()

	outcome, err := s.acquireLocked(ctx, task, url, rec, spec, details)
	if err != nil {
		return s.fail(ctx, task, rec, err)
	}
	outcome.Quality = req.Quality
	return outcome
}

// acquireLocked runs the fetch and place steps while holding the (owner, video) lock
func (s *Service) acquireLocked(ctx context.Context, task *model.DownloadTask, url string, rec *model.DownloadRecord, spec EncodeSpec, details *model.VideoDetails) (*model.DownloadOutcome, error) {
	dir := platform.OwnerDir(s.downloadDir, rec.UserID)
	if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", model.ErrDownloadFailed, dir, err)
	}

	removed, err := platform.RemoveMatchingFiles(dir, rec.VideoID)
	if err != nil {
		return nil, fmt.Errorf("%w: clean previous artifacts: %v", model.ErrDownloadFailed, err)
	}
	if removed > 0 {
		log.Printf("[DEBUG] removed %d previous artifacts of %s for %d", removed, rec.VideoID, rec.UserID)
	}

	rec.Status = model.RecordStatusPending
	if err := s.deps.Registry.UpsertDownload(ctx, rec); err != nil {
		return nil, err
	}

	base := filepath.Join(dir, platform.ArtifactBase(rec.Title, rec.VideoID))
	expected := base + "." + spec.Extension

	if err := s.fetch(ctx, task, url, spec.FetchOptions(base+"."+OutputExtPattern, func(p platform.FetchProgress) {
		s.updateProgress(task, p)
	})); err != nil {
		return nil, err
	}

	artifact, err := platform.FindArtifact(expected, rec.VideoID)
	if err != nil {
		return nil, fmt.Errorf("%w: output missing: %v", model.ErrDownloadFailed, err)
	}
	s.updateTask(task, func(t *model.DownloadTask) { t.OutputPath = artifact })

	if s.deps.Prober != nil {
		if _, err := s.deps.Prober.Check(ctx, artifact); err != nil {
			return nil, fmt.Errorf("%w: probe %s: %v", model.ErrDownloadFailed, filepath.Base(artifact), err)
		}
	}

	s.setStage(task, model.StagePlacing)
	placement, err := s.deps.Placer.Place(ctx, rec.UserID, artifact)
	if err != nil {
		if !errors.Is(err, model.ErrPlacementFailed) {
			err = fmt.Errorf("%w: %v", model.ErrPlacementFailed, err)
		}
		return nil, err
	}

	rec.Status = model.RecordStatusDownloaded
	rec.FilePath = placement.Location
	if err := s.deps.Registry.UpsertDownload(ctx, rec); err != nil {
		if rmErr := s.deps.Placer.Remove(context.WithoutCancel(ctx), placement.Location); rmErr != nil {
			log.Printf("[WARN] failed to remove unrecorded artifact %s: %v", placement.Location, rmErr)
		}
		return nil, err
	}

	s.updateTask(task, func(t *model.DownloadTask) {
		t.Stage = model.StageCompleted
		t.Progress = 1.0
		t.Percent = 100
		t.FinishedAt = time.Now()
	})
	log.Printf("[INFO] link ready for %d/%s: %s", rec.UserID, rec.VideoID, placement.FileName)

	return &model.DownloadOutcome{
		Status:    model.RecordStatusDownloaded,
		VideoID:   rec.VideoID,
		Title:     rec.Title,
		CoverURL:  details.ThumbnailURL,
		FileName:  placement.FileName,
		FileURL:   placement.URL,
		FileSize:  placement.Size,
		ExpiresAt: placement.ExpiresAt,
	}, nil
}

// fetch runs the extractor exactly once inside the worker pool
func (s *Service) fetch(ctx context.Context, task *model.DownloadTask, url string, opts platform.FetchOptions) error {
	if err := s.pool.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.pool.Release(1)

	s.setStage(task, model.StageFetching)
	if _, err := s.deps.Extractor.Fetch(ctx, url, opts); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", model.ErrDownloadFailed, err)
	}
	return nil
}

// fail records the failure and builds the outcome
func (s *Service) fail(ctx context.Context, task *model.DownloadTask, rec *model.DownloadRecord, err error) *model.DownloadOutcome {
	failure := model.FailureFor(err)
	outcome := &model.DownloadOutcome{
		Status:    model.RecordStatusFailed,
		Reason:    failure.Reason,
		Retryable: failure.Retryable,
		Err:       err,
	}

	if rec != nil {
		outcome.VideoID = rec.VideoID
		outcome.Title = rec.Title

		// never leave the row pending, even when the caller is gone
		bg := context.WithoutCancel(ctx)
		rec.Status = model.RecordStatusFailed
		rec.FilePath = ""
		if uerr := s.deps.Registry.UpsertDownload(bg, rec); uerr != nil {
			log.Printf("[ERROR] failed to record failure of %d/%s: %v", rec.UserID, rec.VideoID, uerr)
		}
		dir := platform.OwnerDir(s.downloadDir, rec.UserID)
		if _, rmErr := platform.RemoveMatchingFiles(dir, rec.VideoID); rmErr != nil {
			log.Printf("[WARN] failed to clean partial files of %s: %v", rec.VideoID, rmErr)
		}
	}

	s.updateTask(task, func(t *model.DownloadTask) {
		t.Stage = model.StageFailed
		t.LastError = err.Error()
		t.FinishedAt = time.Now()
	})
	log.Printf("[WARN] acquire %s for %d failed (%s): %v", task.URL, task.OwnerID, failure.Reason, err)
	return outcome
}

// startTask registers a new in-flight task
func (s *Service) startTask(req model.AcquireRequest) *model.DownloadTask {
	task := &model.DownloadTask{
		ID:        generateTaskID(),
		OwnerID:   req.OwnerID,
		URL:       req.URL,
		Stage:     model.StageRequested,
		ETASec:    -1,
		StartedAt: time.Now(),
	}

	s.tasksMutex.Lock()
	s.tasks[task.ID] = task
	s.tasksMutex.Unlock()

	s.notifyUpdate(task)
	return task
}

// finishTask drops a finished task from the in-flight set
func (s *Service) finishTask(task *model.DownloadTask) {
	s.tasksMutex.Lock()
	delete(s.tasks, task.ID)
	s.tasksMutex.Unlock()
}

func (s *Service) setStage(task *model.DownloadTask, stage model.Stage) {
	s.updateTask(task, func(t *model.DownloadTask) { t.Stage = stage })
}

// updateProgress updates task progress from extractor progress
func (s *Service) updateProgress(task *model.DownloadTask, p platform.FetchProgress) {
	s.updateTask(task, func(t *model.DownloadTask) {
		if p.Percent > 0 {
			t.Percent = int(p.Percent)
			t.Progress = p.Percent / 100.0
		}
		if p.ETA > 0 {
			t.ETASec = int(p.ETA.Seconds())
		}
	})
}

func (s *Service) updateTask(task *model.DownloadTask, mutate func(*model.DownloadTask)) {
	s.tasksMutex.Lock()
	mutate(task)
	s.tasksMutex.Unlock()
	s.notifyUpdate(task)
}

// notifyUpdate calls the update callback with a snapshot of the task
func (s *Service) notifyUpdate(task *model.DownloadTask) {
	if s.onUpdate == nil {
		return
	}
	s.tasksMutex.RLock()
	snapshot := *task
	s.tasksMutex.RUnlock()
	s.onUpdate(&snapshot)
}

// generateTaskID generates a unique task ID using UUID v7
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
