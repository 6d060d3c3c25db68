package tracker

import (
	"context"
	"fmt"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/shared"
)

const updateBuffer = 64

// DefaultEchoExpiry is how long a push may go unanswered before it stops holding back remote snapshots.
const DefaultEchoExpiry = 10 * time.Second

// Repository is durable local storage for progress and migration markers.
type Repository interface {
	LoadProgress() (models.Progress, error)
	SaveProgress(p models.Progress) error
	Marker(key string) (string, error)
	SetMarker(key, value string) error
}

// Bridge is the remote sync connection.
type Bridge interface {
	Subscribe(ctx context.Context, collectionID string, fn bridge.SnapshotFunc) error
	Push(ctx context.Context, p models.Progress) error
	Status() bridge.Status
	Close() error
}

// Opts configures a [Tracker].
type Opts struct {
	Repo    Repository
	Catalog *catalog.Catalog
	// Bridge is optional. Without one the tracker runs local-only.
	Bridge         Bridge
	Logger         *log.Logger
	ConfirmTimeout time.Duration
	EchoExpiry     time.Duration
}

// Tracker owns one session's progress: the store, the pending confirmation, local persistence and the link to
// the remote mirror.
type Tracker struct {
	repo    Repository
	catalog *catalog.Catalog
	bridge  Bridge
	logger  *log.Logger

	store   *progress.Store
	toggler *progress.Toggler
	updates chan Update

	mu           sync.Mutex
	collectionID string
	connected    bool

	echoMu     sync.Mutex
	echoExpiry time.Duration
	pushSeq    uint64
	inflight   []inflightPush
}

// inflightPush is a snapshot sent to the mirror whose echo has not arrived.
type inflightPush struct {
	seq      uint64
	progress models.Progress
	sent     time.Time
}

// New creates a Tracker with an empty store. Call [Tracker.Start] to load persisted progress.
func New(opts Opts) *Tracker {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Catalog == nil {
		opts.Catalog, _ = catalog.New()
	}
	if opts.EchoExpiry <= 0 {
		opts.EchoExpiry = DefaultEchoExpiry
	}

	t := &Tracker{
		repo:       opts.Repo,
		catalog:    opts.Catalog,
		bridge:     opts.Bridge,
		logger:     opts.Logger,
		store:      progress.NewStore(nil),
		updates:    make(chan Update, updateBuffer),
		echoExpiry: opts.EchoExpiry,
	}
	t.toggler = progress.NewToggler(t.store, progress.TogglerOpts{
		Persister: opts.Repo,
		Pusher:    t,
		Logger:    opts.Logger,
		Timeout:   opts.ConfirmTimeout,
		OnResolve: t.resolved,
	})
	return t
}

// Store returns the live progress store.
func (t *Tracker) Store() *progress.Store { return t.store }

// Catalog returns the catalog the tracker checks completion against.
func (t *Tracker) Catalog() *catalog.Catalog { return t.catalog }

// Pending returns the open uncheck confirmation, if any.
func (t *Tracker) Pending() *progress.Confirmation { return t.toggler.Pending() }

// Updates delivers change notifications for renderers. Updates are dropped when nobody keeps up.
func (t *Tracker) Updates() <-chan Update { return t.updates }

// Start loads persisted progress, adds empty entries for every catalog set and runs the one-time edition
// migration.
func (t *Tracker) Start(ctx context.Context) error {
	p, err := t.repo.LoadProgress()
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	t.store.ReplaceAll(p)

	if t.store.EnsureScopes(t.catalog.Scopes()...) {
		if err := t.repo.SaveProgress(t.store.Snapshot()); err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
	}

	changed, err := progress.RunMigration(ctx, t.toggler, t.repo, progress.EditionMigration)
	if err != nil {
		return err
	}
	if changed {
		t.emit(Update{Kind: MigrationApplied})
	}
	return nil
}

// Toggle flips one variant flag on a card.
//
// Catalog metadata decides whether the card is complete. Cards missing from the catalog are toggled freely.
// A pending result carries the confirmation to answer.
func (t *Tracker) Toggle(ctx context.Context, scope, number, variant string) (progress.Result, error) {
	req := progress.Request{Scope: scope, Card: catalog.CardNumber(number), Variant: variant}
	if set, card, err := t.catalog.Card(scope, req.Card); err == nil {
		req.CardName = card.Name
		req.Applicable = catalog.Variants(set, card)
	} else {
		req.Uncatalogued = true
	}

	res, err := t.toggler.Toggle(ctx, req)
	switch res.State {
	case progress.Applied:
		t.emit(Update{Kind: ProgressChanged, Scope: req.Scope, Card: req.Card, Variant: req.Variant, Value: res.Value})
	case progress.PendingConfirmation:
		t.emit(Update{
			Kind:         ConfirmationRequested,
			Scope:        req.Scope,
			Card:         req.Card,
			Variant:      req.Variant,
			Value:        true,
			Confirmation: res.Confirmation,
		})
	}
	return res, err
}

func (t *Tracker) resolved(req progress.Request, res progress.Resolution) {
	t.emit(Update{
		Kind:       ConfirmationResolved,
		Scope:      req.Scope,
		Card:       req.Card,
		Variant:    req.Variant,
		Value:      t.store.Get(req.Scope, req.Card, req.Variant),
		Resolution: res,
	})
}

// Complete reports whether every applicable variant of a catalogued card is collected.
func (t *Tracker) Complete(scope, number string) bool {
	applicable, ok := t.catalog.Applicable(scope, number)
	if !ok {
		return false
	}
	return t.store.ComputeCompletion(scope, catalog.CardNumber(number), applicable)
}

// Import replaces the whole store with p, then persists and pushes it.
func (t *Tracker) Import(ctx context.Context, p models.Progress) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	incoming := p.Clone()

	changed, err := t.toggler.Commit(ctx, func(live models.Progress) bool {
		if live.Equal(incoming) {
			return false
		}
		for scope := range live {
			delete(live, scope)
		}
		for scope, cards := range incoming {
			live[scope] = cards
		}
		return true
	})
	if changed {
		t.emit(Update{Kind: ProgressChanged})
	}
	return changed, err
}

// Stats returns progress for one set.
func (t *Tracker) Stats(scope string) (progress.Stats, error) {
	set, ok := t.catalog.Lookup(scope)
	if !ok {
		return progress.Stats{}, fmt.Errorf("%w: %s", shared.ErrSetNotFound, scope)
	}
	return t.store.Stats(scope, cardVariants(set)), nil
}

// AllStats returns progress for every catalog set in catalog order.
func (t *Tracker) AllStats() []progress.Stats {
	sets := t.catalog.Sets()
	out := make([]progress.Stats, 0, len(sets))
	for _, set := range sets {
		out = append(out, t.store.Stats(set.Scope(), cardVariants(set)))
	}
	return out
}

func cardVariants(set *models.Set) []progress.CardVariants {
	cards := make([]progress.CardVariants, 0, len(set.Cards))
	for _, c := range set.Cards {
		cards = append(cards, progress.CardVariants{Card: c.Number, Variants: catalog.Variants(set, c)})
	}
	return cards
}

// Close dismisses any pending confirmation and detaches from the mirror.
func (t *Tracker) Close() error {
	if c := t.toggler.Pending(); c != nil {
		if err := c.Keep(); errors.Is(err, progress.ErrConfirmationResolved) {
			t.logger.Debug("confirmation resolved before close", "scope", c.Request().Scope, "card", c.Request().Card)
		}
	}
	t.setConnected("", false)
	if t.bridge == nil {
		return nil
	}
	return t.bridge.Close()
}

func (t *Tracker) emit(u Update) {
	select {
	case t.updates <- u:
	default:
		t.logger.Debug("dropping update", "kind", u.Kind)
	}
}
