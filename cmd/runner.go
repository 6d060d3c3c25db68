package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/images"
	"github.com/desertthunder/binder/internal/repositories"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/desertthunder/binder/internal/tracker"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// Input answers interactive prompts. Defaults to os.Stdin.
	Input io.Reader
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
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
	}
}

// SetLogger swaps the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, progressCommand, migrateCommand, catalogCommand, imagesCommand,
		collectionCommand, syncCommand, mirrorCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure returns the configuration for a command. An explicit --config flag is loaded fresh; otherwise the
// configuration the runner was built with is used.
func (r *Runner) configure(cmd *cli.Command) (*shared.Config, error) {
	if !cmd.IsSet("config") {
		return r.config, nil
	}
	path := cmd.String("config")
	if path == r.configPath {
		return r.config, nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// session is an opened database with a started tracker.
type session struct {
	db          *sql.DB
	tracker     *tracker.Tracker
	client      *bridge.Client
	collections *repositories.CollectionRepository
	progress    *repositories.ProgressRepository
}

// Close detaches the tracker and closes the database.
func (s *session) Close() error {
	err := s.tracker.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// openSession opens the database, loads the catalog and starts a tracker over the stored progress. With
// withSync set the tracker gets a sync bridge but is not yet connected.
func (r *Runner) openSession(ctx context.Context, config *shared.Config, withSync bool) (*session, error) {
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cat, err := r.loadCatalog(ctx, config)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &session{
		db:          db,
		collections: repositories.NewCollectionRepository(db),
		progress:    repositories.NewProgressRepository(repositories.NewKVRepository(db), r.logger),
	}

	opts := tracker.Opts{
		Repo:           s.progress,
		Catalog:        cat,
		Logger:         r.logger,
		ConfirmTimeout: config.UI.Timeout(),
	}
	if withSync {
		s.client, err = r.newBridge(config, func(st bridge.Status) {
			if s.tracker != nil {
				s.tracker.SetStatus(st)
			}
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		opts.Bridge = s.client
	}

	s.tracker = tracker.New(opts)
	if err := s.tracker.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (r *Runner) loadCatalog(ctx context.Context, config *shared.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(ctx, catalog.LoadOpts{
		Dir:       config.Catalog.DataDir,
		BatchSize: config.Catalog.BatchSize,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	r.logger.Debug("catalog loaded", "sets", cat.Len(), "dir", config.Catalog.DataDir)
	return cat, nil
}

func (r *Runner) newBridge(config *shared.Config, onStatus func(bridge.Status)) (*bridge.Client, error) {
	if config.Sync.URL == "" {
		return nil, fmt.Errorf("%w: sync.url is not set", shared.ErrMissingConfig)
	}
	return bridge.NewClient(bridge.ClientOpts{
		URL:         config.Sync.URL,
		Token:       config.Sync.Token,
		DialTimeout: config.Sync.Timeout(),
		Logger:      shared.WithLogger(r.logger, "component", "bridge"),
		OnStatus:    onStatus,
	})
}

// collectionID picks the collection to sync: the explicit argument, then the configured id, then the
// collection last selected with `collection use`.
func (r *Runner) collectionID(config *shared.Config, s *session, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if config.Sync.CollectionID != "" {
		return config.Sync.CollectionID, nil
	}
	active, err := s.collections.Active()
	if err != nil {
		return "", err
	}
	if active == nil {
		return "", fmt.Errorf("%w: no collection selected, run 'binder collection new' or pass --collection", shared.ErrMissingConfig)
	}
	return active.ID, nil
}

func (r *Runner) limiter(config *shared.Config) *rate.Limiter {
	if config.Images.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(config.Images.RequestsPerSecond), 1)
}

func (r *Runner) newResolver(config *shared.Config) *images.Resolver {
	index := images.NewIndexClient(config.Images.IndexURL, r.httpClient, r.limiter(config))
	return images.NewResolver(images.ResolverOpts{
		Index:       index,
		Codes:       config.Images.IndexCodes,
		LocalRoot:   config.Images.LocalRoot,
		ScrydexSets: config.Images.ScrydexSets,
		Logger:      shared.WithLogger(r.logger, "component", "images"),
	})
}

func (r *Runner) newProber(config *shared.Config) *images.Prober {
	return images.NewProber(r.httpClient, r.limiter(config), ".", config.Images.Placeholder)
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
