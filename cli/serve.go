package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiscope/lexiscope/engine/analysis"
	"github.com/lexiscope/lexiscope/engine/chat"
	"github.com/lexiscope/lexiscope/engine/document"
	"github.com/lexiscope/lexiscope/engine/feedback"
	"github.com/lexiscope/lexiscope/engine/improvement"
	"github.com/lexiscope/lexiscope/engine/infra/monitoring"
	"github.com/lexiscope/lexiscope/engine/infra/postgres"
	"github.com/lexiscope/lexiscope/engine/infra/server"
	"github.com/lexiscope/lexiscope/engine/knowledge"
	"github.com/lexiscope/lexiscope/engine/llm"
	"github.com/lexiscope/lexiscope/pkg/config"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

// ServeCmd runs the HTTP service.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") {
		logLevel = cfg.Log.Level
	}
	logger.SetupLogger(logLevel, logJSON || cfg.Log.JSON, logSource || cfg.Log.Source)
	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(logLevel),
		JSON:       logJSON || cfg.Log.JSON,
		AddSource:  logSource || cfg.Log.Source,
		TimeFormat: "15:04:05",
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, log)

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, deps)
	return srv.Run(ctx)
}

// buildDeps wires the service graph. Without a database connection string
// the service runs on in-memory stores and logs the degradation.
func buildDeps(ctx context.Context, cfg *config.Config) (server.Deps, func(), error) {
	log := logger.FromContext(ctx)
	cleanup := func() {}

	var (
		improvementStore improvement.Store
		feedbackStore    feedback.Store
		performanceStore feedback.PerformanceStore
		analyticsStore   feedback.AnalyticsStore
		documentStore    document.Store
		chatStore        chat.Store
		db               *postgres.DB
	)
	if cfg.Database.ConnString != "" {
		var err error
		db, err = postgres.NewDB(ctx, &postgres.Config{ConnString: cfg.Database.ConnString})
		if err != nil {
			return server.Deps{}, nil, err
		}
		cleanup = func() { db.Close(ctx) }
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db.Pool()); err != nil {
				db.Close(ctx)
				return server.Deps{}, nil, err
			}
		}
		feedbackRepo := postgres.NewFeedbackRepo(db.Pool())
		improvementStore = postgres.NewImprovementRepo(db.Pool())
		feedbackStore = feedbackRepo
		performanceStore = feedbackRepo
		analyticsStore = feedbackRepo
		documentStore = postgres.NewDocumentRepo(db.Pool())
		chatStore = postgres.NewChatRepo(db.Pool())
	} else {
		log.Warn("no database configured, running on in-memory stores")
		memory := feedback.NewMemoryStore()
		improvementStore = improvement.NewMemoryStore()
		feedbackStore = memory
		performanceStore = memory
	}

	index, err := knowledge.NewIndex(knowledge.DefaultFactory, knowledge.Settings{
		ChunkSize:       cfg.Knowledge.ChunkSize,
		ChunkOverlap:    cfg.Knowledge.ChunkOverlap,
		TopK:            cfg.Knowledge.TopK,
		MinScore:        cfg.Knowledge.MinScore,
		MaxContextChars: cfg.Knowledge.MaxContextChars,
	})
	if err != nil {
		cleanup()
		return server.Deps{}, nil, fmt.Errorf("building retrieval index: %w", err)
	}

	client := llm.NewClient(llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		TopP:            cfg.LLM.TopP,
		TopK:            cfg.LLM.TopK,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		MaxRetries:      cfg.LLM.MaxRetries,
		RetryBackoff:    cfg.LLM.RetryBackoff,
		MaxPromptChars:  cfg.LLM.MaxPromptChars,
		MinTimeout:      cfg.LLM.MinTimeout,
		MaxTimeout:      cfg.LLM.MaxTimeout,
	})
	if cfg.LLM.APIKey == "" {
		log.Warn("no llm api key configured, completions will degrade to sentinels")
	}

	analysisSvc, err := analysis.NewService(client, improvementStore, analysis.Settings{
		APIKey:              cfg.LLM.APIKey,
		SingleCallThreshold: cfg.Analysis.SingleCallThreshold,
		ChunkSize:           cfg.Analysis.ChunkSize,
		BatchSize:           cfg.Analysis.BatchSize,
		BatchCooldown:       cfg.Analysis.BatchCooldown,
		SynthesisThreshold:  cfg.Analysis.SynthesisThreshold,
		SynthesisInputCap:   cfg.Analysis.SynthesisInputCap,
	})
	if err != nil {
		cleanup()
		return server.Deps{}, nil, err
	}

	docs := document.NewService(documentStore, index)
	chatSvc := chat.NewService(client, index, docs, chatStore, cfg.LLM.APIKey)
	feedbackSvc := feedback.NewService(feedbackStore, analyticsStore)

	engine := feedback.NewEngine(feedbackStore, improvementStore, performanceStore, feedback.Rules{
		Window:       cfg.Feedback.Window,
		MinFrequency: cfg.Feedback.MinFrequency,
		Threshold:    cfg.Feedback.Threshold,
	})
	scheduler := feedback.NewScheduler(engine)
	if err := scheduler.Start(ctx, cfg.Feedback.Schedule); err != nil {
		cleanup()
		return server.Deps{}, nil, fmt.Errorf("starting feedback scheduler: %w", err)
	}
	prevCleanup := cleanup
	cleanup = func() {
		done := make(chan struct{})
		go func() {
			scheduler.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			log.Warn("feedback scheduler did not stop in time")
		}
		prevCleanup()
	}

	return server.Deps{
		Analysis:   analysisSvc,
		Documents:  docs,
		Chat:       chatSvc,
		Feedback:   feedbackSvc,
		Scheduler:  scheduler,
		Index:      index,
		Monitoring: monitoring.NewService(),
		DB:         db,
	}, cleanup, nil
}
