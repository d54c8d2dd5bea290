package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/repositories"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// SnapshotStore is a [tasks.SnapshotCache] that can also report on and empty itself.
type SnapshotStore interface {
	tasks.SnapshotCache
	Info(ctx context.Context) (repositories.CacheInfo, error)
	Clear(ctx context.Context) (int, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The remote library, cache and the components built on them are created on first use so that
// commands like setup and auth login work without credentials or a database.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client

	remote   services.RemoteLibrary
	spotify  *services.SpotifyService
	cache    SnapshotStore
	db       *sql.DB
	migrated bool
	history  *repositories.HistoryRepository
	closers  []func() error

	catalog     *tasks.PlaylistCatalog
	streamer    *tasks.TrackStreamer
	coordinator *tasks.ReorderCoordinator
	worker      *tasks.PlaybackWorker
	transport   *tasks.Transport
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Remote and Cache replace the Spotify binding and the configured cache backend when set.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	Remote     services.RemoteLibrary
	Cache      SnapshotStore
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		remote:     opts.Remote,
		cache:      opts.Cache,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, playerCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, applies .env overrides and sets the log level.
//
// A missing config file is not an error here; commands that need credentials report it themselves.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	if err := r.config.ApplyEnv(cmd.String("env")); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// Close releases the database, cache and any other resources opened by commands.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// SetLogger replaces the logger used by the runner and the components it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// library returns the remote library, authenticating the Spotify binding from the stored token on first use.
func (r *Runner) library(ctx context.Context) (services.RemoteLibrary, error) {
	if r.remote != nil {
		return r.remote, nil
	}

	svc, err := r.newSpotifyService()
	if err != nil {
		return nil, err
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'playdeck auth login' first", shared.ErrNotAuthenticated)
	}
	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := r.saveTokens(t); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
		}
	})
	svc.SetToken(ctx, token)

	r.spotify = svc
	r.remote = svc
	return svc, nil
}

func (r *Runner) newSpotifyService() (*services.SpotifyService, error) {
	api := r.config.API
	svc, err := services.NewSpotifyService(
		r.config.Credentials.Spotify.Map(),
		services.WithRateLimit(api.RateLimit, api.Burst),
		services.WithPageSize(api.PageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	return svc, nil
}

// saveTokens stores token in the config and writes it to the config path when one is set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// database opens the sqlite database and applies migrations on first use.
func (r *Runner) database() (*sql.DB, error) {
	db, err := r.openDatabase()
	if err != nil || r.migrated {
		return db, err
	}
	migrator, err := shared.NewMigrator(db, r.logger)
	if err != nil {
		return nil, err
	}
	if _, err := migrator.Up(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.migrated = true
	return db, nil
}

// openDatabase opens the configured sqlite database once, without touching the schema.
func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	r.closers = append(r.closers, db.Close)
	return db, nil
}

// snapshotCache opens the configured cache backend on first use.
func (r *Runner) snapshotCache(ctx context.Context) (SnapshotStore, error) {
	if r.cache != nil {
		return r.cache, nil
	}

	cfg := r.config.Cache
	switch cfg.Backend {
	case "file":
		store, err := repositories.NewFileSnapshotStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		r.cache = store
	case "redis":
		store, err := repositories.OpenRedisSnapshotStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, store.Close)
		r.cache = store
	case "sqlite", "":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		r.cache = repositories.NewSnapshotRepository(db, r.config.Database.Path)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}

	r.logger.Debug("opened snapshot cache", "backend", cfg.Backend)
	return r.cache, nil
}

// historyRepository returns the playback history store, or nil when the database cannot be opened.
func (r *Runner) historyRepository() *repositories.HistoryRepository {
	if r.history != nil {
		return r.history
	}
	db, err := r.database()
	if err != nil {
		r.logger.Warn("playback history disabled", "error", err)
		return nil
	}
	r.history = repositories.NewHistoryRepository(db)
	return r.history
}

// playlists builds the catalog, streamer and reorder coordinator.
func (r *Runner) playlists(ctx context.Context) error {
	if r.catalog != nil {
		return nil
	}
	remote, err := r.library(ctx)
	if err != nil {
		return err
	}

	var cache tasks.SnapshotCache
	if store, err := r.snapshotCache(ctx); err != nil {
		r.logger.Warn("snapshot cache disabled", "error", err)
	} else {
		cache = store
	}

	r.catalog = tasks.NewPlaylistCatalog(remote, r.logger)
	r.streamer = tasks.NewTrackStreamer(remote, cache, r.logger)
	r.coordinator = tasks.NewReorderCoordinator(remote, cache, r.catalog, r.logger)
	return nil
}

// player builds the playback worker and transport. History is recorded when record is set.
func (r *Runner) player(ctx context.Context, record bool) error {
	if r.worker != nil {
		return nil
	}
	remote, err := r.library(ctx)
	if err != nil {
		return err
	}

	opts := []tasks.WorkerOption{
		tasks.WithInterval(r.config.Player.Interval()),
		tasks.WithSubscriberBuffer(r.config.Player.SubscriberBuffer),
		tasks.WithWorkerLogger(r.logger),
	}
	if record {
		if h := r.historyRepository(); h != nil {
			opts = append(opts, tasks.WithHistory(h))
		}
	}

	r.worker = tasks.NewPlaybackWorker(remote, opts...)
	r.transport = tasks.NewTransport(remote, r.worker, r.logger)
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
