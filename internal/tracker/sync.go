package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
)

// Connect subscribes to a collection on the mirror, detaching any previous one.
//
// The first snapshot replaces local progress, so a brand-new collection starts empty. A failure leaves the
// tracker local-only and is returned for the caller to report.
func (t *Tracker) Connect(ctx context.Context, collectionID string) error {
	if t.bridge == nil {
		return fmt.Errorf("%w: sync is not configured", shared.ErrMissingConfig)
	}

	t.setConnected("", false)
	t.resetEchoes()

	if err := t.bridge.Subscribe(ctx, collectionID, t.onSnapshot); err != nil {
		t.logger.Warn("sync unavailable, continuing local-only", "collection", collectionID, "error", err)
		t.SetStatus(t.bridge.Status())
		return err
	}

	t.setConnected(collectionID, true)
	t.logger.Info("connected", "collection", collectionID)
	t.SetStatus(t.bridge.Status())
	return nil
}

// CollectionID returns the subscribed collection, or "" when local-only.
func (t *Tracker) CollectionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.collectionID
}

// Status returns the sync status.
func (t *Tracker) Status() bridge.Status {
	if t.bridge == nil {
		return bridge.Disconnected
	}
	return t.bridge.Status()
}

// SetStatus forwards a bridge status change to renderers. Pushes still awaiting an echo are forgotten once the
// connection is lost.
func (t *Tracker) SetStatus(s bridge.Status) {
	if s == bridge.Offline || s == bridge.Disconnected {
		t.resetEchoes()
	}
	t.emit(Update{Kind: StatusChanged, Status: s})
}

func (t *Tracker) setConnected(collectionID string, connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collectionID = collectionID
	t.connected = connected
}

func (t *Tracker) isConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Push sends the whole store to the mirror and expects it back as an echo. It is a no-op while local-only.
func (t *Tracker) Push(ctx context.Context, p models.Progress) error {
	if t.bridge == nil || !t.isConnected() {
		return nil
	}

	seq := t.expectEcho(p)
	if err := t.bridge.Push(ctx, p); err != nil {
		t.forgetEcho(seq)
		return err
	}
	return nil
}

// PendingEchoes returns how many pushed snapshots have not come back yet.
func (t *Tracker) PendingEchoes() int {
	t.echoMu.Lock()
	defer t.echoMu.Unlock()
	return len(t.inflight)
}

func (t *Tracker) expectEcho(p models.Progress) uint64 {
	t.echoMu.Lock()
	defer t.echoMu.Unlock()
	t.pushSeq++
	t.inflight = append(t.inflight, inflightPush{seq: t.pushSeq, progress: p.Clone(), sent: time.Now()})
	return t.pushSeq
}

func (t *Tracker) forgetEcho(seq uint64) {
	t.echoMu.Lock()
	defer t.echoMu.Unlock()
	for i, e := range t.inflight {
		if e.seq == seq {
			t.inflight = append(t.inflight[:i:i], t.inflight[i+1:]...)
			return
		}
	}
}

func (t *Tracker) resetEchoes() {
	t.echoMu.Lock()
	defer t.echoMu.Unlock()
	t.inflight = nil
}

// matchEcho reports whether p is the echo of one of our pushes, consuming it and any older push, and
// otherwise whether pushes are still unanswered.
func (t *Tracker) matchEcho(p models.Progress) (own, behind bool) {
	t.echoMu.Lock()
	defer t.echoMu.Unlock()

	now := time.Now()
	live := t.inflight[:0]
	for _, e := range t.inflight {
		if now.Sub(e.sent) < t.echoExpiry {
			live = append(live, e)
		}
	}
	if dropped := len(t.inflight) - len(live); dropped > 0 {
		t.logger.Warn("pushes never echoed", "dropped", dropped)
	}
	t.inflight = live

	for i, e := range t.inflight {
		if e.progress.Equal(p) {
			t.inflight = t.inflight[i+1:]
			return true, false
		}
	}
	return false, len(t.inflight) > 0
}

func (t *Tracker) onSnapshot(p models.Progress, empty bool) {
	t.toggler.Exclusive(func() { t.applySnapshot(p, empty) })
}

// applySnapshot takes a remote snapshot as authoritative, except while our own pushes are unanswered. The
// mirror stores writes in order, so any snapshot seen before an echo is already superseded by that push.
//
// Echoes of our own pushes are neither stored nor announced.
func (t *Tracker) applySnapshot(p models.Progress, empty bool) {
	own, behind := t.matchEcho(p)
	if own {
		t.logger.Debug("suppressed echo", "pending", t.PendingEchoes())
		return
	}
	if behind {
		t.logger.Debug("snapshot predates pending push, keeping local progress", "pending", t.PendingEchoes())
		t.emit(Update{Kind: SnapshotReceived})
		return
	}

	t.store.ReplaceAll(p)
	if empty {
		t.store.EnsureScopes(t.catalog.Scopes()...)
	}

	if err := t.repo.SaveProgress(t.store.Snapshot()); err != nil {
		t.logger.Error("failed to persist snapshot", "error", err)
	}
	t.emit(Update{Kind: SnapshotReceived, Empty: empty})
}
