package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
)

// DefaultConfirmTimeout is how long an uncheck confirmation stays open before it resolves as "keep".
const DefaultConfirmTimeout = 5 * time.Second

// DefaultPushTimeout bounds a single push so a stalled mirror cannot hold up later toggles.
const DefaultPushTimeout = 3 * time.Second

var (
	ErrConfirmationResolved = errors.New("confirmation already resolved")
	ErrSuperseded           = errors.New("confirmation superseded by a newer request")
	ErrConfirmationTimeout  = errors.New("confirmation timed out")
)

// State is the outcome of a toggle request.
type State int

const (
	Idle State = iota
	PendingConfirmation
	Applied
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingConfirmation:
		return "pending"
	case Applied:
		return "applied"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Persister durably stores the whole progress tree.
type Persister interface {
	SaveProgress(p models.Progress) error
}

// Pusher sends the whole progress tree to the remote. Failures are logged, never surfaced.
type Pusher interface {
	Push(ctx context.Context, p models.Progress) error
}

// Request asks to flip one variant flag.
type Request struct {
	Scope    string
	Card     string
	Variant  string
	CardName string
	// Applicable lists the variants that make the card complete.
	Applicable []string
	// Uncatalogued marks a card missing from the catalog. Unchecking such a card never asks for confirmation.
	Uncatalogued bool
}

func (r Request) validate() error {
	if r.Scope == "" || r.Card == "" || r.Variant == "" {
		return fmt.Errorf("%w: scope, card and variant are required", shared.ErrInvalidInput)
	}
	return nil
}

// Result reports what a call to [Toggler.Toggle] did.
type Result struct {
	State State
	// Value is the flag's value after the call. A pending request still reads true.
	Value bool
	// Confirmation is set when State is [PendingConfirmation].
	Confirmation *Confirmation
}

// Resolution is how a confirmation ended.
type Resolution struct {
	State State
	// Revert tells the caller to restore the control it optimistically cleared.
	Revert bool
	// Cause is nil for an explicit answer, [ErrConfirmationTimeout] on expiry, [ErrSuperseded] when a newer
	// confirmation replaced this one, or the context error when the toggle context ended first.
	Cause error
}

// TogglerOpts configures a [Toggler].
type TogglerOpts struct {
	Persister Persister
	Pusher    Pusher
	Logger    *log.Logger
	Timeout   time.Duration
	// PushTimeout bounds each push. Defaults to [DefaultPushTimeout].
	PushTimeout time.Duration
	// OnResolve is called once per confirmation after it resolves, outside any lock.
	OnResolve func(Request, Resolution)
}

// Toggler applies toggle requests to a [Store], gating unchecks on complete cards behind a confirmation.
//
// At most one confirmation is pending at a time. Every applied change is stored, persisted and pushed in
// that order, one change at a time.
type Toggler struct {
	store     *Store
	persister Persister
	pusher    Pusher
	logger    *log.Logger
	timeout   time.Duration
	pushWait  time.Duration
	onResolve func(Request, Resolution)

	mu      sync.Mutex
	pending *Confirmation
}

// NewToggler creates a Toggler for store.
func NewToggler(store *Store, opts TogglerOpts) *Toggler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConfirmTimeout
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = DefaultPushTimeout
	}
	return &Toggler{
		store:     store,
		persister: opts.Persister,
		pusher:    opts.Pusher,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
		pushWait:  opts.PushTimeout,
		onResolve: opts.OnResolve,
	}
}

// Store returns the store the toggler mutates.
func (t *Toggler) Store() *Store { return t.store }

// Pending returns the open confirmation, if any.
func (t *Toggler) Pending() *Confirmation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Toggle flips the flag named by req.
//
// Checking a variant on, or unchecking one on an incomplete card, applies immediately. Unchecking a variant on a
// complete card returns a [Confirmation] instead and leaves the store untouched. A new confirmation silently
// cancels any earlier one without asking the caller to revert it.
//
// ctx bounds the confirmation's lifetime. The returned error is only non-nil for invalid requests or when
// the local persist fails. In the latter case the store has already changed.
func (t *Toggler) Toggle(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{State: Idle}, err
	}

	t.mu.Lock()
	current := t.store.Get(req.Scope, req.Card, req.Variant)

	if !current || req.Uncatalogued || !t.store.ComputeCompletion(req.Scope, req.Card, req.Applicable) {
		err := t.applyLocked(ctx, req, !current)
		t.mu.Unlock()
		return Result{State: Applied, Value: !current}, err
	}

	prev := t.pending
	superseded := Resolution{State: Cancelled, Cause: ErrSuperseded}
	if prev != nil && prev.settle(superseded) {
		prev.release()
	} else {
		prev = nil
	}

	c := newConfirmation(ctx, t, req)
	t.pending = c
	t.mu.Unlock()

	if prev != nil {
		t.logger.Debug("confirmation superseded", "scope", prev.req.Scope, "card", prev.req.Card, "variant", prev.req.Variant)
		t.notify(prev.req, superseded)
		close(prev.done)
	}

	return Result{State: PendingConfirmation, Value: true, Confirmation: c}, nil
}

// Commit runs fn against the live store and, when fn reports a change, persists and pushes the result.
// Commits are ordered with toggles.
func (t *Toggler) Commit(ctx context.Context, fn func(models.Progress) bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.store.Update(fn) {
		return false, nil
	}
	return true, t.flushLocked(ctx)
}

// Exclusive runs fn while no toggle, commit or confirmed uncheck is being applied.
// fn must not call back into the toggler.
func (t *Toggler) Exclusive(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
}

// applyLocked performs the mutation, then the local persist, then the best-effort push.
func (t *Toggler) applyLocked(ctx context.Context, req Request, value bool) error {
	t.store.Set(req.Scope, req.Card, req.Variant, value)
	t.logger.Debug("variant toggled", "scope", req.Scope, "card", req.Card, "variant", req.Variant, "value", value)
	return t.flushLocked(ctx)
}

func (t *Toggler) flushLocked(ctx context.Context) error {
	snap := t.store.Snapshot()

	var err error
	if t.persister != nil {
		if perr := t.persister.SaveProgress(snap); perr != nil {
			t.logger.Error("failed to persist progress", "error", perr)
			err = fmt.Errorf("%w: %v", shared.ErrStorage, perr)
		}
	}

	if t.pusher != nil {
		pctx, cancel := context.WithTimeout(ctx, t.pushWait)
		if perr := t.pusher.Push(pctx, snap); perr != nil {
			t.logger.Warn("push failed", "error", perr)
		}
		cancel()
	}

	return err
}

func (t *Toggler) clear(c *Confirmation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == c {
		t.pending = nil
	}
}

func (t *Toggler) notify(req Request, res Resolution) {
	if t.onResolve != nil {
		t.onResolve(req, res)
	}
}

// Confirmation is an open request to uncheck a variant on a complete card.
//
// It resolves exactly once: by [Confirmation.Uncheck], [Confirmation.Keep], its timeout, cancellation of the
// toggle context, or a newer confirmation superseding it.
type Confirmation struct {
	req      Request
	toggler  *Toggler
	parent   context.Context
	deadline time.Time
	cancel   context.CancelFunc
	stop     func() bool
	done     chan struct{}

	mu       sync.Mutex
	res      Resolution
	resolved bool
}

func newConfirmation(ctx context.Context, t *Toggler, req Request) *Confirmation {
	cctx, cancel := context.WithTimeoutCause(ctx, t.timeout, ErrConfirmationTimeout)
	deadline, _ := cctx.Deadline()

	c := &Confirmation{
		req:      req,
		toggler:  t,
		parent:   context.WithoutCancel(ctx),
		deadline: deadline,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.stop = context.AfterFunc(cctx, func() { c.expire(context.Cause(cctx)) })
	return c
}

// Request returns the toggle request awaiting an answer.
func (c *Confirmation) Request() Request { return c.req }

// Deadline returns when the confirmation expires.
func (c *Confirmation) Deadline() time.Time { return c.deadline }

// Prompt names the variant and card being unchecked.
func (c *Confirmation) Prompt() string {
	name := strings.TrimSpace(c.req.CardName)
	if name == "" {
		name = "#" + c.req.Card
	}
	return fmt.Sprintf("Uncheck %s on %s? This card is complete.", c.req.Variant, name)
}

// Done is closed once the confirmation resolves, any resulting change has been applied and OnResolve has returned.
func (c *Confirmation) Done() <-chan struct{} { return c.done }

// Resolution returns how the confirmation ended. The bool is false while it is still pending.
func (c *Confirmation) Resolution() (Resolution, bool) {
	select {
	case <-c.done:
	default:
		return Resolution{State: PendingConfirmation}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res, true
}

// Wait blocks until the confirmation resolves or ctx ends.
func (c *Confirmation) Wait(ctx context.Context) (Resolution, error) {
	select {
	case <-c.done:
		res, _ := c.Resolution()
		return res, nil
	case <-ctx.Done():
		return Resolution{State: PendingConfirmation}, ctx.Err()
	}
}

// Uncheck confirms the uncheck and applies it.
// It returns [ErrConfirmationResolved] if the confirmation already ended.
func (c *Confirmation) Uncheck() error {
	res := Resolution{State: Applied}
	if !c.settle(res) {
		return ErrConfirmationResolved
	}
	c.release()

	t := c.toggler
	t.mu.Lock()
	if t.pending == c {
		t.pending = nil
	}
	err := t.applyLocked(c.parent, c.req, false)
	t.mu.Unlock()

	t.notify(c.req, res)
	close(c.done)
	return err
}

// Keep dismisses the confirmation and leaves the flag set.
// It returns [ErrConfirmationResolved] if the confirmation already ended.
func (c *Confirmation) Keep() error {
	res := Resolution{State: Cancelled, Revert: true}
	if !c.settle(res) {
		return ErrConfirmationResolved
	}
	c.release()
	c.finish(res)
	return nil
}

func (c *Confirmation) expire(cause error) {
	res := Resolution{State: Cancelled, Revert: true, Cause: ErrConfirmationTimeout}
	if !errors.Is(cause, ErrConfirmationTimeout) {
		res.Cause = cause
	}
	if !c.settle(res) {
		return
	}
	c.cancel()
	c.toggler.logger.Debug("confirmation expired", "scope", c.req.Scope, "card", c.req.Card, "cause", res.Cause)
	c.finish(res)
}

func (c *Confirmation) finish(res Resolution) {
	c.toggler.clear(c)
	c.toggler.notify(c.req, res)
	close(c.done)
}

// settle records res if nothing has resolved the confirmation yet.
func (c *Confirmation) settle(res Resolution) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return false
	}
	c.resolved = true
	c.res = res
	return true
}

// release stops the expiry timer.
func (c *Confirmation) release() {
	c.stop()
	c.cancel()
}
