package cmd

import (
	"context"
	"fmt"
	"time"

	"aifeed/internal/blobstore"
	"aifeed/internal/community"
	"aifeed/internal/config"
	"aifeed/internal/discovery"
	"aifeed/internal/docstore"
	"aifeed/internal/fetcher"
	"aifeed/internal/llm"
	"aifeed/internal/logger"
	"aifeed/internal/news"
	"aifeed/internal/notify"
	"aifeed/internal/pipeline"
	"aifeed/internal/podcast"
	"aifeed/internal/prefs"
	"aifeed/internal/provider"
	"aifeed/internal/push"
	"aifeed/internal/report"
	"aifeed/internal/scheduler"
	"aifeed/internal/server"
	"aifeed/internal/tts"
)

// app holds the wired service graph.
type app struct {
	docs         docstore.Store
	prefs        *prefs.Store
	orchestrator *pipeline.Orchestrator
	scheduler    *scheduler.Scheduler
	server       *server.Server
	closers      []func() error
}

// disabledSender stands in when push credentials are not configured; the
// notification step simply fails non-fatally.
type disabledSender struct{}

func (disabledSender) Send(ctx context.Context, deviceToken, title, body string, opts push.Options) (string, error) {
	return "", provider.New("fcm", provider.KindAuth, 0, "push notifications are not configured")
}

// buildApp wires every service from configuration. Missing store or blob
// settings fall back to in-memory implementations so local runs work
// without infrastructure.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	if cfg.Store.DSN != "" {
		pg, err := docstore.NewPostgresStore(cfg.Store.DSN, docstore.Options{
			MaxOpenConns: cfg.Store.MaxOpenConns,
			MaxIdleConns: cfg.Store.MaxIdleConns,
			ConnLifetime: cfg.Store.ConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open document store: %w", err)
		}
		a.docs = pg
		a.closers = append(a.closers, pg.Close)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory document store")
		a.docs = docstore.NewMemoryStore()
	}

	var blobs blobstore.Store
	if cfg.Blob.Bucket != "" {
		s3, err := blobstore.NewS3Store(ctx, cfg.Blob.Bucket, cfg.Blob.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to open blob store: %w", err)
		}
		blobs = s3
	} else {
		logger.Warn("AIFEED_BUCKET not set, using in-memory blob store")
		blobs = blobstore.NewMemoryStore()
	}

	chat, err := llm.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var sender push.Sender
	if cfg.Push.ProjectID != "" && cfg.Push.CredentialsFile != "" {
		client, err := push.NewClient(ctx, cfg.Push.ProjectID, cfg.Push.CredentialsFile, cfg.Push.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create push client: %w", err)
		}
		sender = client
	} else {
		logger.Warn("FCM not configured, push notifications disabled")
		sender = disabledSender{}
	}

	a.prefs = prefs.NewStore(a.docs)

	fetch := fetcher.New(
		news.NewClient(cfg.News.APIKey, cfg.News.Timeout),
		community.NewClient(cfg.Community.Timeout),
		a.prefs,
		a.docs,
		fetcher.Config{CommentsPerPost: 2, Country: cfg.News.Country},
	)
	reports := report.NewBuilder(chat, a.docs)
	podcasts := podcast.NewService(chat, tts.NewClient(cfg.TTS.APIKey, cfg.TTS.Timeout), a.docs, blobs, podcast.Config{
		DefaultVoice: cfg.TTS.DefaultVoice,
		ModelID:      cfg.TTS.ModelID,
	})
	notifier := notify.New(sender, a.prefs)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Warn("Invalid scheduler timezone, using local time", "timezone", cfg.Scheduler.Timezone)
		loc = time.Local
	}

	a.orchestrator = pipeline.New(fetch, reports, podcasts, notifier)
	a.scheduler = scheduler.New(a.prefs, a.orchestrator, scheduler.Config{
		Tick:          cfg.Scheduler.TickInterval,
		MaxConcurrent: int64(cfg.Scheduler.MaxWorkers),
		Location:      loc,
	})

	a.server = server.New(server.Deps{
		Preferences: a.prefs,
		Refresher:   fetch,
		Reports:     reports,
		Podcasts:    podcasts,
		Updates:     a.orchestrator,
		Discovery:   discovery.NewService(chat, a.prefs),
		Docs:        a.docs,
	}, cfg.Server)

	return a, nil
}

// close releases held resources in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Error("Failed to close resource", err)
		}
	}
}
