package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nsqio/go-nsq"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/features/deadletter"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/features/query"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/features/settings"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/features/stats"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/features/webhook"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/adapter/gemini"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/adapter/payloadcms"
	wstore "github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/adapter/weaviate"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/config"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/content"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/indexer"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/middleware"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/retrieval"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/rewrite"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/sparse"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/syncer"
)

type App struct {
	Handler   http.Handler
	Scheduler *syncer.Scheduler

	cfg      *config.Config
	consumer *nsq.Consumer
}

func New(ctx context.Context, cfg *config.Config, deps *Dependencies) (*App, error) {
	db := deps.DB

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo, settings.Settings{
		SearchAlpha: cfg.SearchAlpha,
		SearchTopK:  cfg.SearchTopK,
	})
	if err := settingsService.Load(ctx); err != nil {
		slog.Warn("failed to load persisted settings, using defaults", "error", err)
	}
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder error: %w", err)
	}
	denseStore := wstore.NewStore(deps.WeaviateClient)
	cmsClient := payloadcms.NewClient(cfg.CMSBaseURL, cfg.CMSAPIKey)

	// Sparse index, rebuilt from the authoritative chunk table so restarts
	// don't lose keyword search.
	chunkRepo := indexer.NewPostgresChunkRepo(db)
	sparseIndex := sparse.New()
	if err := rebuildSparseIndex(ctx, chunkRepo, sparseIndex); err != nil {
		return nil, fmt.Errorf("sparse index rebuild error: %w", err)
	}

	// Sync pipeline
	writer := indexer.NewWriter(embedder, denseStore, sparseIndex, chunkRepo)
	pipeline := syncer.NewPipeline(cmsClient, writer)

	dlRepo := deadletter.NewPostgresRepo(db)
	scheduler, err := syncer.NewScheduler(pipeline, deadletter.NewSink(dlRepo), cfg.SyncConcurrency, cfg.SyncMaxRetries, cfg.SyncBackoffBase)
	if err != nil {
		return nil, fmt.Errorf("scheduler error: %w", err)
	}

	deadLetterHandler := deadletter.NewHandler(dlRepo, scheduler)
	webhookHandler := webhook.NewHandler(cfg.WebhookSecret, cfg.WebhookFreshness, deps.NSQProducer)
	statsHandler := stats.NewHandler(chunkRepo, dlRepo, sparseIndex)

	// Query path
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, denseStore, sparseIndex, cfg.SearchAlpha, cfg.SearchTopK, cfg.LegTimeout, queryLogger)

	var rewriteModel rewrite.Model
	if cfg.RewriterBaseURL != "" || cfg.RewriterAPIKey != "" {
		rewriteModel, err = rewrite.NewOpenAIModel(cfg.RewriterBaseURL, cfg.RewriterAPIKey, cfg.RewriterModel)
		if err != nil {
			slog.Warn("failed to create rewriter model, queries pass through unrewritten", "error", err)
			rewriteModel = nil
		}
	}
	rewriter := rewrite.NewRewriter(rewriteModel, cfg.MaxHistoryTurns, cfg.RewriterTimeout)
	queryHandler := query.NewHandler(rewriter, retrievalService, settingsService)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /webhook/content", middleware.CorrelationID(http.HandlerFunc(webhookHandler.Receive)))

	mux.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Search)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.Get)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.Update)))

	mux.Handle("GET /dead-letters", middleware.CorrelationID(enableCORS(deadLetterHandler.List)))
	mux.Handle("POST /dead-letters/{id}/retry", middleware.CorrelationID(enableCORS(deadLetterHandler.Retry)))
	mux.Handle("DELETE /dead-letters/{id}", middleware.CorrelationID(enableCORS(deadLetterHandler.Delete)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// NSQ consumer for sync tasks
	consumer, err := nsq.NewConsumer(config.TopicContentSync, config.ChannelIndexer, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	syncConsumer := syncer.NewConsumer(scheduler)
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return syncConsumer.HandleMessage(m)
	}))

	return &App{
		Handler:   mux,
		Scheduler: scheduler,
		cfg:       cfg,
		consumer:  consumer,
	}, nil
}

// rebuildSparseIndex loads every published chunk from the authoritative
// store and swaps in a fresh snapshot.
func rebuildSparseIndex(ctx context.Context, repo *indexer.PostgresChunkRepo, idx *sparse.Index) error {
	chunks, err := repo.ListPublished(ctx)
	if err != nil {
		return err
	}

	docs := make(map[string][]content.Chunk)
	for _, c := range chunks {
		docs[c.DocumentID] = append(docs[c.DocumentID], c)
	}
	idx.Rebuild(docs)

	slog.Info("sparse index rebuilt", "documents", len(docs), "chunks", len(chunks))
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if err := a.consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		return fmt.Errorf("failed to connect to NSQLookupd: %w", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		a.consumer.Stop()
		a.Scheduler.Close()
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
