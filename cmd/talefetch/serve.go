package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	v1 "github.com/talefetch/talefetch/internal/api/v1"
	"github.com/talefetch/talefetch/internal/config"
	"github.com/talefetch/talefetch/internal/convert"
	"github.com/talefetch/talefetch/internal/destination"
	"github.com/talefetch/talefetch/internal/engine"
	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/license"
	"github.com/talefetch/talefetch/internal/metadata"
	"github.com/talefetch/talefetch/internal/migrations"
	"github.com/talefetch/talefetch/internal/monitor"
	"github.com/talefetch/talefetch/internal/netwatch"
	"github.com/talefetch/talefetch/internal/orchestrator"
	"github.com/talefetch/talefetch/internal/prefs"
	"github.com/talefetch/talefetch/internal/probe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the acquisition daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// statusRecorder keeps the first status code a handler writes so the
// access log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == http.StatusOK {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig resolves the config path, loads the file, and validates it.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			return nil, err
		}
		path = discovered
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &config.ConfigError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// pipeline holds the assembled components for one daemon run.
type pipeline struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *sql.DB
	bus     *events.Bus
	watcher *netwatch.HTTPWatcher // nil without a check URL
	arbiter *netwatch.Arbiter
	orch    *orchestrator.Orchestrator
	sinks   *orchestrator.Sinks
}

func (p *pipeline) close() {
	_ = p.db.Close()
}

// buildPipeline wires every component from config. Nothing is running yet;
// call start next.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Workflow.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store := prefs.NewSQLiteStore(db)
	if err := seedPreferences(store, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed preferences: %w", err)
	}

	cache := metadata.NewCache(db)
	if pruned, err := cache.Prune(ctx); err != nil {
		logger.Warn("metadata cache prune failed", "error", err)
	} else if pruned > 0 {
		logger.Info("metadata cache pruned", "entries", pruned)
	}

	metaService := metadata.NewService(metadata.NewClient(cfg.Metadata.URL, cfg.Metadata.Token), cache, logger)
	if cfg.Metadata.CacheTTL > 0 {
		metaService.SetBookTTL(time.Duration(cfg.Metadata.CacheTTL) * time.Hour)
	}

	eng := engine.NewHTTPClient(cfg.Engine.URL, cfg.Engine.APIKey, logger)
	licenses := license.NewHTTPClient(cfg.License.URL, cfg.License.Token)
	prober := probe.NewFFmpegProber(cfg.Media.FFprobe, cfg.Media.FFmpeg)
	transcoder := convert.NewFFmpegTranscoder(cfg.Media.FFmpeg)

	bus := events.NewBus(logger)
	writer := destination.NewWriter(destination.NewLocalStorage(), store, bus, logger)
	converter := convert.NewConverter(metaService, transcoder, prober, writer, bus, cfg.Workflow.StagingDir, logger)

	mon := monitor.New(eng, bus, converter.Convert,
		time.Duration(cfg.Workflow.PollInterval)*time.Second, logger)

	var httpWatcher *netwatch.HTTPWatcher
	var watcher netwatch.Watcher
	if cfg.Network.CheckURL != "" {
		httpWatcher = netwatch.NewHTTPWatcher(cfg.Network.CheckURL,
			time.Duration(cfg.Network.CheckInterval)*time.Second, logger)
		watcher = httpWatcher
	} else {
		// No probe target means the policy can never see the network
		// leave; treat it as always present.
		watcher = netwatch.Static(true)
	}
	arbiter := netwatch.NewArbiter(eng, store, watcher, logger)

	orch := orchestrator.New(orchestrator.Config{
		Engine:         eng,
		Licenses:       licenses,
		Monitor:        mon,
		Arbiter:        arbiter,
		Store:          store,
		Bus:            bus,
		StagingDir:     cfg.Workflow.StagingDir,
		DestinationDir: cfg.Library.Root,
		Logger:         logger,
	})

	sinks := orchestrator.NewSinks(bus)
	sinks.OnProgress(func(e *events.Progress) {
		logger.Debug("progress", "id", e.ItemID(), "stage", e.Stage, "percent", e.Percent)
	})
	sinks.OnCompletion(func(e *events.Completed) {
		logger.Info("acquisition complete", "id", e.ItemID(), "title", e.Title, "path", e.FinalPath)
	})
	sinks.OnFailure(func(e *events.Failed) {
		logger.Warn("acquisition failed", "id", e.ItemID(), "title", e.Title, "error", e.Message)
	})

	return &pipeline{
		cfg:     cfg,
		log:     logger,
		db:      db,
		bus:     bus,
		watcher: httpWatcher,
		arbiter: arbiter,
		orch:    orch,
		sinks:   sinks,
	}, nil
}

// seedPreferences applies config-declared preferences at boot. Config is
// the source of truth for these; runtime changes last until the next
// restart.
func seedPreferences(store prefs.Store, cfg *config.Config) error {
	if err := store.SetNamingPattern(cfg.Library.Naming); err != nil {
		return err
	}
	if err := store.SetCompanionCoverArt(cfg.Library.CoverArt); err != nil {
		return err
	}
	return store.SetRestrictedOnly(cfg.Network.RestrictedOnly)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	if err := p.arbiter.Start(ctx); err != nil {
		return fmt.Errorf("start arbiter: %w", err)
	}

	mux := http.NewServeMux()
	v1.New(p.orch, p.log).RegisterRoutes(mux)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: logRequests(mux, p.log)}

	g, ctx := errgroup.WithContext(ctx)
	if p.watcher != nil {
		g.Go(func() error { return p.watcher.Run(ctx) })
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.log.Warn("api server shutdown", "error", err)
		}

		p.orch.Shutdown()
		p.sinks.Wait()
		return ctx.Err()
	})

	p.log.Info("talefetch running",
		"addr", addr,
		"engine", cfg.Engine.URL,
		"library", cfg.Library.Root,
		"staging", cfg.Workflow.StagingDir)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	p.log.Info("talefetch stopped")
	return nil
}
