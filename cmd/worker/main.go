package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mediagen/internal/infra"
	"mediagen/internal/orchestrator"
	"mediagen/internal/provider"
	"mediagen/internal/providers"
	"mediagen/internal/status"
	"mediagen/internal/storage"
	"mediagen/internal/store"
)

const claimInterval = 2 * time.Second

type trackerWorker struct {
	ctx        context.Context
	service    *orchestrator.Service
	store      *store.Store
	fileStore  *storage.FileStore
	httpClient *http.Client
	logger     infra.Logger
	wg         sync.WaitGroup
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("worker: DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	var fileStore *storage.FileStore
	if cfg.StoragePath != "" {
		fileStore, err = storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: failed to configure storage")
		}
	}

	registry := providers.BuildRegistry(cfg, logger)
	worker := &trackerWorker{
		ctx:        ctx,
		service:    orchestrator.New(registry, nil, cfg.PollInterval, logger),
		store:      store.New(infra.NewSQLRunner(pool, logger)),
		fileStore:  fileStore,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	worker.wg.Wait()
	logger.Info().Msg("worker: stopped")
}

func (w *trackerWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		rec, err := w.store.Claim(w.ctx)
		if err != nil {
			if !errors.Is(err, store.ErrNoTask) {
				w.logger.Error().Err(err).Msg("worker: failed to claim task")
			}
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(claimInterval):
			}
			continue
		}

		// One goroutine per tracked task; the claim's row lock guarantees
		// this tracker is the sole owner of the continuation handle.
		w.wg.Add(1)
		go func(rec store.TaskRecord) {
			defer w.wg.Done()
			w.trackTask(rec)
		}(rec)
	}
}

func (w *trackerWorker) trackTask(rec store.TaskRecord) {
	w.logger.Info().
		Str("task_id", rec.ID).
		Str("provider", rec.Provider).
		Msg("worker: tracking task")

	updates, err := w.service.Track(w.ctx, rec.Provider, provider.Task{ID: rec.ID, Handle: rec.Handle})
	if err != nil {
		w.finish(rec.ID, status.Update{Status: status.KeyError, ErrorMessage: err.Error()})
		return
	}

	var last status.Update
	terminal := false
	for update := range updates {
		last = update
		if update.Terminal() {
			terminal = true
		}
	}
	if !terminal {
		// Cancelled before a terminal update; leave the row in TRACKING so
		// an operator can requeue it.
		w.logger.Warn().Str("task_id", rec.ID).Msg("worker: tracking ended without terminal update")
		return
	}

	if last.Status == status.KeyComplete && w.fileStore != nil {
		w.downloadOutputs(rec, last.OutputURLs)
	}
	if last.Status == status.KeyComplete && len(last.OutputURLs) == 0 {
		w.logger.Warn().Str("task_id", rec.ID).Msg("worker: task completed with no extractable outputs")
	}
	w.finish(rec.ID, last)
}

func (w *trackerWorker) finish(taskID string, final status.Update) {
	if err := w.store.Finish(w.ctx, taskID, final); err != nil {
		w.logger.Error().Err(err).Str("task_id", taskID).Msg("worker: failed to record outcome")
		return
	}
	w.logger.Info().
		Str("task_id", taskID).
		Str("status", string(final.Status)).
		Int("outputs", len(final.OutputURLs)).
		Msg("worker: task finished")
}

// downloadOutputs mirrors finished media into local storage. Failures are
// logged and skipped: the provider URLs in the ledger remain the source of
// truth.
func (w *trackerWorker) downloadOutputs(rec store.TaskRecord, urls []string) {
	for idx, url := range urls {
		data, err := w.fetch(url)
		if err != nil {
			w.logger.Warn().Err(err).Str("task_id", rec.ID).Str("url", url).Msg("worker: output download failed")
			continue
		}
		key := outputKey(rec, url, idx)
		if _, err := w.fileStore.Write(w.ctx, key, data); err != nil {
			w.logger.Warn().Err(err).Str("task_id", rec.ID).Msg("worker: persist output failed")
		}
	}
}

func (w *trackerWorker) fetch(url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(w.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func outputKey(rec store.TaskRecord, url string, index int) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(path.Base(url), "?", 2)[0]))
	if ext == "" {
		switch rec.Media {
		case provider.MediaVideo:
			ext = ".mp4"
		case provider.MediaAudio:
			ext = ".mp3"
		default:
			ext = ".png"
		}
	}
	return fmt.Sprintf("generated/%s/%s/output-%02d%s", rec.Media, rec.ID, index+1, ext)
}
