package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/course-jobs/internal/async"
	"github.com/joseph-ayodele/course-jobs/internal/async/rabbitmq"
	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/convert"
	"github.com/joseph-ayodele/course-jobs/internal/core"
	"github.com/joseph-ayodele/course-jobs/internal/extract"
	"github.com/joseph-ayodele/course-jobs/internal/imagesearch"
	"github.com/joseph-ayodele/course-jobs/internal/llm/openai"
	"github.com/joseph-ayodele/course-jobs/internal/lock"
	"github.com/joseph-ayodele/course-jobs/internal/ocr"
	"github.com/joseph-ayodele/course-jobs/internal/pipeline"
	repo "github.com/joseph-ayodele/course-jobs/internal/repository"
	"github.com/joseph-ayodele/course-jobs/internal/server"
	"github.com/joseph-ayodele/course-jobs/internal/speech"
	"github.com/joseph-ayodele/course-jobs/internal/storage"
)

// app owns the process-wide clients. Every command builds one and defers close.
type app struct {
	db      *repo.DB
	jobs    repo.JobRepository
	closers []func()
}

func openApp(ctx context.Context) (*app, error) {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, jobs: repo.NewJobRepository(db, logger)}
	a.onClose(func() { server.CloseDB(db, logger) })
	return a, nil
}

func (a *app) onClose(f func()) { a.closers = append(a.closers, f) }

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) ready(ctx context.Context) error {
	return server.PingDB(ctx, a.db, logger, 2*time.Second)
}

// stages builds the pipeline adapters for processes that execute jobs.
func (a *app) stages() (*pipeline.Stages, error) {
	if err := cfg.ValidatePipeline(); err != nil {
		return nil, err
	}
	store, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	ai := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	var images imagesearch.Searcher = imagesearch.Disabled{}
	if cfg.Images.APIKey != "" {
		images = imagesearch.NewPexelsClient(imagesearch.Config{
			BaseURL: cfg.Images.BaseURL,
			APIKey:  cfg.Images.APIKey,
			Timeout: cfg.Images.Timeout,
		}, logger)
	} else {
		logger.Info("imagesearch.disabled", "reason", "IMAGE_SEARCH_API_KEY not set")
	}

	var pdf extract.PDFReader = extract.FitzReader{}
	if cfg.Convert.Tesseract != "" {
		scanned := ocr.NewReader(ocr.Config{
			Pdftoppm:  cfg.Convert.Pdftoppm,
			Tesseract: cfg.Convert.Tesseract,
			Lang:      cfg.Convert.OCRLang,
		}, nil, logger)
		pdf = extract.FallbackReader{Primary: pdf, Secondary: scanned, Logger: logger}
	}

	return pipeline.NewStages(pipeline.Deps{
		Extractor: extract.NewExtractor(pdf, logger),
		Converter: convert.NewRasterizer(convert.Config{
			Soffice:  cfg.Convert.Soffice,
			Pdftoppm: cfg.Convert.Pdftoppm,
			DPI:      cfg.Convert.DPI,
			Timeout:  cfg.Convert.Timeout,
		}, nil, logger),
		Store:         store,
		Bucket:        cfg.Storage.Bucket,
		Generator:     ai.WithJSONMode(),
		QuizGenerator: ai,
		Speech: speech.NewClient(speech.Config{
			BaseURL: cfg.Speech.BaseURL,
			APIKey:  cfg.Speech.APIKey,
			Model:   cfg.Speech.Model,
			Voice:   cfg.Speech.Voice,
			Timeout: cfg.Speech.Timeout,
		}, logger),
		Images:    images,
		Retrier:   pipeline.NewRetrier(cfg.LLM.MaxAttempts, nil, logger),
		ChunkSize: cfg.LLM.ChunkSize,
	}, logger), nil
}

func (a *app) queueConfig() rabbitmq.Config {
	return rabbitmq.Config{
		Exchange:      cfg.Queue.Exchange,
		RoutingKey:    cfg.Queue.RoutingKey,
		Queue:         cfg.Queue.Queue,
		Workers:       cfg.Queue.Workers,
		MaxDeliveries: cfg.Queue.MaxDeliveries,
		JobTimeout:    cfg.Queue.JobTimeout,
		LockTTL:       cfg.Redis.LockTTL,
	}
}

// submitter builds an orchestrator that can accept jobs. In local mode it
// also executes them, and close waits for running jobs up to the job timeout.
func (a *app) submitter() (*core.Orchestrator, error) {
	switch cfg.Queue.DispatchMode {
	case common.DispatchLocal:
		stages, err := a.stages()
		if err != nil {
			return nil, err
		}
		orch := core.NewOrchestrator(a.jobs, stages, nil, logger)
		local := async.NewLocalDispatcher(orch, logger)
		orch.SetDispatcher(local)
		a.onClose(func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.JobTimeout)
			defer cancel()
			local.Shutdown(ctx)
		})
		return orch, nil
	default:
		conn, err := rabbitmq.Dial(cfg.Queue.URL)
		if err != nil {
			return nil, err
		}
		a.onClose(func() {
			if err := conn.Close(); err != nil {
				logger.Warn("amqp.close_failed", "error", err)
			}
		})
		pub, err := rabbitmq.NewPublisher(conn, a.queueConfig(), logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = pub.Close() })
		// this process only submits; workers execute
		return core.NewOrchestrator(a.jobs, nil, pub, logger), nil
	}
}

// locker prefers Redis and falls back to a process-local lock.
func (a *app) locker(ctx context.Context) (lock.Locker, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("lock.memory", "msg", "REDIS_ADDR not set; duplicate deliveries are only guarded within this process")
		return lock.NewMemoryLocker(), nil
	}
	client, err := lock.NewRedisClient(ctx, lock.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = client.Close() })
	return lock.NewRedisLocker(client, cfg.Redis.Prefix, logger), nil
}

// ignoreCanceled treats shutdown by signal as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseDay(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD", flag)
	}
	return &t, nil
}
