package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/shared"
	tu "github.com/desertthunder/binder/internal/testing"
)

type fakeBridge struct {
	mu         sync.Mutex
	fn         bridge.SnapshotFunc
	pushes     []models.Progress
	subscribed []string
	subErr     error
	pushErr    error
	status     bridge.Status
	closed     bool
}

func (b *fakeBridge) Subscribe(ctx context.Context, id string, fn bridge.SnapshotFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = append(b.subscribed, id)
	if b.subErr != nil {
		b.status = bridge.Offline
		return b.subErr
	}
	b.fn = fn
	b.status = bridge.Synced
	return nil
}

func (b *fakeBridge) Push(ctx context.Context, p models.Progress) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pushErr != nil {
		return b.pushErr
	}
	b.pushes = append(b.pushes, p.Clone())
	return nil
}

func (b *fakeBridge) Status() bridge.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *fakeBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.status = bridge.Disconnected
	return nil
}

func (b *fakeBridge) deliver(p models.Progress, empty bool) {
	b.mu.Lock()
	fn := b.fn
	b.mu.Unlock()
	fn(p, empty)
}

// echo sends the last pushed value back like the mirror does.
func (b *fakeBridge) echo() {
	b.mu.Lock()
	last := b.pushes[len(b.pushes)-1].Clone()
	b.mu.Unlock()
	b.deliver(last, false)
}

// pushed returns the i-th pushed value, for delivering echoes late.
func (b *fakeBridge) pushed(i int) models.Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pushes[i].Clone()
}

func (b *fakeBridge) pushCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pushes)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		&models.Set{
			Key:  "base-set",
			Kind: models.KindOfficial,
			Name: "Base Set",
			Cards: []models.Card{
				{Number: "4", Name: "Charizard", Rarity: "Rare Holo"},
				{Number: "58", Name: "Pikachu", Rarity: "Common"},
			},
		},
		&models.Set{
			Key:               "psyduck",
			Kind:              models.KindCustom,
			Name:              "Psyduck",
			SingleVariantOnly: true,
			Cards:             []models.Card{{Number: "2", Name: "Psyduck", Variants: []string{"1st-edition", "unlimited"}}},
		},
	)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return c
}

func newTestTracker(t *testing.T, repo *tu.Persister, b Bridge) *Tracker {
	t.Helper()
	if repo == nil {
		repo = &tu.Persister{}
	}
	return New(Opts{
		Repo:           repo,
		Catalog:        testCatalog(t),
		Bridge:         b,
		Logger:         shared.NewLogger(&strings.Builder{}),
		ConfirmTimeout: time.Second,
	})
}

func drain(tr *Tracker) []Update {
	var out []Update
	for {
		select {
		case u := <-tr.Updates():
			out = append(out, u)
		default:
			return out
		}
	}
}

func kinds(updates []Update) []UpdateKind {
	out := make([]UpdateKind, len(updates))
	for i, u := range updates {
		out[i] = u.Kind
	}
	return out
}

func TestTrackerStart(t *testing.T) {
	ctx := context.Background()

	t.Run("initialises scopes and migrates once", func(t *testing.T) {
		repo := &tu.Persister{}
		repo.SaveProgress(models.Progress{
			"custom-psyduck": {"2": {"single": true}, "9": {"single": true}},
		})

		tr := newTestTracker(t, repo, nil)
		if err := tr.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		store := tr.Store()
		if !store.Get("custom-psyduck", "2", "unlimited") || store.Get("custom-psyduck", "2", "single") {
			t.Errorf("card 2 not migrated: %v", store.Card("custom-psyduck", "2"))
		}
		if !store.Get("custom-psyduck", "9", "single") {
			t.Error("card 9 should be untouched")
		}
		if _, ok := store.Snapshot()["base-set"]; !ok {
			t.Error("expected base-set scope to be initialised")
		}

		marker, _ := repo.Marker(progress.EditionMigrationKey)
		if marker == "" {
			t.Error("expected migration marker")
		}
		if !repo.Last().Get("custom-psyduck", "2", "unlimited") {
			t.Error("migrated progress was not persisted")
		}

		got := kinds(drain(tr))
		if len(got) != 1 || got[0] != MigrationApplied {
			t.Errorf("updates = %v", got)
		}

		saves := repo.Saves()
		again := newTestTracker(t, repo, nil)
		if err := again.Start(ctx); err != nil {
			t.Fatalf("second Start() error = %v", err)
		}
		if repo.Saves() != saves {
			t.Errorf("second start saved again: %d -> %d", saves, repo.Saves())
		}
	})

	t.Run("load failure", func(t *testing.T) {
		tr := New(Opts{Repo: &failingRepo{}, Logger: shared.NewLogger(&strings.Builder{})})
		if err := tr.Start(ctx); err == nil {
			t.Error("expected error")
		}
	})
}

type failingRepo struct{ tu.Persister }

func (*failingRepo) LoadProgress() (models.Progress, error) { return nil, errors.New("disk gone") }

func TestTrackerToggle(t *testing.T) {
	ctx := context.Background()

	t.Run("complete card needs confirmation", func(t *testing.T) {
		repo := &tu.Persister{}
		b := &fakeBridge{}
		tr := newTestTracker(t, repo, b)
		if err := tr.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if err := tr.Connect(ctx, "abc"); err != nil {
			t.Fatal(err)
		}
		drain(tr)

		for _, v := range []string{"holo", "reverse-holo"} {
			res, err := tr.Toggle(ctx, "base-set", "4", v)
			if err != nil || res.State != progress.Applied || !res.Value {
				t.Fatalf("Toggle(%s) = %+v, %v", v, res, err)
			}
		}
		if !tr.Complete("base-set", "4") {
			t.Fatal("expected card to be complete")
		}

		saves, pushes := repo.Saves(), b.pushCount()
		res, err := tr.Toggle(ctx, "base-set", "004", "holo")
		if err != nil || res.State != progress.PendingConfirmation {
			t.Fatalf("Toggle() = %+v, %v", res, err)
		}
		if !strings.Contains(res.Confirmation.Prompt(), "Charizard") {
			t.Errorf("prompt = %q", res.Confirmation.Prompt())
		}
		if repo.Saves() != saves || b.pushCount() != pushes {
			t.Error("pending confirmation must not persist or push")
		}
		if tr.Pending() != res.Confirmation {
			t.Error("expected confirmation to be pending")
		}

		if err := res.Confirmation.Uncheck(); err != nil {
			t.Fatalf("Uncheck() error = %v", err)
		}
		if tr.Store().Get("base-set", "4", "holo") {
			t.Error("expected holo to be unchecked")
		}
		if b.pushCount() != pushes+1 {
			t.Errorf("pushes = %d, want %d", b.pushCount(), pushes+1)
		}

		got := drain(tr)
		last := got[len(got)-1]
		if last.Kind != ConfirmationResolved || last.Resolution.State != progress.Applied || last.Value {
			t.Errorf("last update = %+v", last)
		}
	})

	t.Run("keep leaves the flag", func(t *testing.T) {
		tr := newTestTracker(t, nil, nil)
		tr.Start(ctx)
		tr.Toggle(ctx, "custom-psyduck", "2", "1st-edition")
		tr.Toggle(ctx, "custom-psyduck", "2", "unlimited")

		res, _ := tr.Toggle(ctx, "custom-psyduck", "2", "unlimited")
		if res.State != progress.PendingConfirmation {
			t.Fatalf("state = %v", res.State)
		}
		res.Confirmation.Keep()
		if !tr.Store().Get("custom-psyduck", "2", "unlimited") {
			t.Error("keep must not change the flag")
		}
		got := drain(tr)
		last := got[len(got)-1]
		if last.Kind != ConfirmationResolved || !last.Resolution.Revert {
			t.Errorf("last update = %+v", last)
		}
	})

	t.Run("uncatalogued card toggles freely", func(t *testing.T) {
		tr := newTestTracker(t, nil, nil)
		tr.Start(ctx)

		for _, want := range []bool{true, false} {
			res, err := tr.Toggle(ctx, "mystery", "1", "holo")
			if err != nil || res.State != progress.Applied || res.Value != want {
				t.Fatalf("Toggle() = %+v, %v", res, err)
			}
		}
	})

	t.Run("local-only does not push", func(t *testing.T) {
		b := &fakeBridge{}
		tr := newTestTracker(t, nil, b)
		tr.Start(ctx)
		tr.Toggle(ctx, "base-set", "58", "normal")
		if b.pushCount() != 0 {
			t.Errorf("pushed %d times before connecting", b.pushCount())
		}
		if tr.PendingEchoes() != 0 {
			t.Errorf("pending echoes = %d", tr.PendingEchoes())
		}
	})
}

func TestTrackerSync(t *testing.T) {
	ctx := context.Background()

	t.Run("own echo is neither stored again nor announced", func(t *testing.T) {
		repo := &tu.Persister{}
		b := &fakeBridge{}
		tr := newTestTracker(t, repo, b)
		tr.Start(ctx)
		tr.Connect(ctx, "abc")
		drain(tr)

		tr.Toggle(ctx, "base-set", "58", "normal")
		if tr.PendingEchoes() != 1 {
			t.Fatalf("pending echoes = %d, want 1", tr.PendingEchoes())
		}
		drain(tr)

		saves := repo.Saves()
		b.echo()
		if tr.PendingEchoes() != 0 {
			t.Errorf("pending echoes = %d, want 0", tr.PendingEchoes())
		}
		if repo.Saves() != saves {
			t.Errorf("echo was persisted again: %d -> %d saves", saves, repo.Saves())
		}
		if got := drain(tr); len(got) != 0 {
			t.Errorf("echo produced updates %v", kinds(got))
		}

		remote := models.Progress{"base-set": {"58": {"normal": true, "reverse-holo": true}}}
		b.deliver(remote, false)
		if !tr.Store().Get("base-set", "58", "reverse-holo") {
			t.Error("remote snapshot should replace the store")
		}
		got := drain(tr)
		if len(got) != 1 || got[0].Kind != SnapshotReceived {
			t.Errorf("updates = %v", kinds(got))
		}
	})

	t.Run("late echoes do not roll back newer toggles", func(t *testing.T) {
		repo := &tu.Persister{}
		b := &fakeBridge{}
		tr := newTestTracker(t, repo, b)
		tr.Start(ctx)
		tr.Connect(ctx, "abc")

		tr.Toggle(ctx, "base-set", "58", "normal")
		tr.Toggle(ctx, "base-set", "58", "reverse-holo")
		drain(tr)

		b.deliver(b.pushed(0), false)
		if !tr.Store().Get("base-set", "58", "reverse-holo") {
			t.Fatal("echo of the first push rolled back the second toggle")
		}

		tr.Toggle(ctx, "base-set", "4", "holo")
		if !b.pushed(2).Get("base-set", "58", "reverse-holo") {
			t.Errorf("third push lost reverse-holo: %v", b.pushed(2))
		}
		drain(tr)

		b.deliver(b.pushed(1), false)
		b.deliver(b.pushed(2), false)

		store := tr.Store()
		for _, v := range []struct{ card, variant string }{{"58", "normal"}, {"58", "reverse-holo"}, {"4", "holo"}} {
			if !store.Get("base-set", v.card, v.variant) {
				t.Errorf("%s/%s lost", v.card, v.variant)
			}
		}
		if tr.PendingEchoes() != 0 {
			t.Errorf("pending echoes = %d, want 0", tr.PendingEchoes())
		}
		if got := drain(tr); len(got) != 0 {
			t.Errorf("echoes produced updates %v", kinds(got))
		}
		if !repo.Last().Equal(store.Snapshot()) {
			t.Error("persisted progress diverged from the store")
		}
	})

	t.Run("toggle before the first snapshot survives it", func(t *testing.T) {
		b := &fakeBridge{}
		tr := newTestTracker(t, nil, b)
		tr.Start(ctx)
		tr.Connect(ctx, "abc")
		drain(tr)

		tr.Toggle(ctx, "base-set", "58", "normal")
		drain(tr)

		b.deliver(models.Progress{"base-set": {"4": {"holo": true}}}, false)
		if !tr.Store().Get("base-set", "58", "normal") {
			t.Error("snapshot older than the pending push replaced the toggle")
		}
		if tr.Store().Get("base-set", "4", "holo") {
			t.Error("superseded snapshot should not be applied")
		}
		got := drain(tr)
		if len(got) != 1 || got[0].Kind != SnapshotReceived {
			t.Errorf("updates = %v", kinds(got))
		}

		b.echo()
		if tr.PendingEchoes() != 0 || !tr.Store().Get("base-set", "58", "normal") {
			t.Errorf("after echo: pending = %d, store = %v", tr.PendingEchoes(), tr.Store().Snapshot())
		}
	})

	t.Run("unanswered push expires", func(t *testing.T) {
		b := &fakeBridge{}
		tr := New(Opts{
			Repo:       &tu.Persister{},
			Catalog:    testCatalog(t),
			Bridge:     b,
			Logger:     shared.NewLogger(&strings.Builder{}),
			EchoExpiry: 10 * time.Millisecond,
		})
		tr.Start(ctx)
		tr.Connect(ctx, "abc")
		tr.Toggle(ctx, "base-set", "58", "normal")

		time.Sleep(30 * time.Millisecond)
		b.deliver(models.Progress{"base-set": {"4": {"holo": true}}}, false)
		if !tr.Store().Get("base-set", "4", "holo") {
			t.Error("remote snapshot should apply once the push has expired")
		}
		if tr.PendingEchoes() != 0 {
			t.Errorf("pending echoes = %d", tr.PendingEchoes())
		}
	})

	t.Run("losing the connection forgets pending echoes", func(t *testing.T) {
		b := &fakeBridge{}
		tr := newTestTracker(t, nil, b)
		tr.Start(ctx)
		tr.Connect(ctx, "abc")
		tr.Toggle(ctx, "base-set", "58", "normal")
		if tr.PendingEchoes() != 1 {
			t.Fatalf("pending echoes = %d, want 1", tr.PendingEchoes())
		}

		tr.SetStatus(bridge.Offline)
		if tr.PendingEchoes() != 0 {
			t.Errorf("pending echoes = %d after going offline", tr.PendingEchoes())
		}
		drain(tr)

		remote := models.Progress{"base-set": {"4": {"holo": true}}}
		b.deliver(remote, false)
		if !tr.Store().Snapshot().Equal(remote) {
			t.Errorf("store = %v", tr.Store().Snapshot())
		}
		got := drain(tr)
		if len(got) != 1 || got[0].Kind != SnapshotReceived {
			t.Errorf("updates = %v", kinds(got))
		}
	})

	t.Run("failed push does not expect an echo", func(t *testing.T) {
		b := &fakeBridge{pushErr: errors.New("socket closed")}
		tr := newTestTracker(t, nil, b)
		tr.Start(ctx)
		tr.Connect(ctx, "abc")

		res, err := tr.Toggle(ctx, "base-set", "58", "normal")
		if err != nil || res.State != progress.Applied {
			t.Fatalf("Toggle() = %+v, %v", res, err)
		}
		if tr.PendingEchoes() != 0 {
			t.Errorf("pending echoes = %d", tr.PendingEchoes())
		}
	})

	t.Run("new collection starts empty", func(t *testing.T) {
		repo := &tu.Persister{}
		b := &fakeBridge{}
		tr := newTestTracker(t, repo, b)
		tr.Start(ctx)
		tr.Toggle(ctx, "base-set", "58", "normal")

		tr.Connect(ctx, "fresh")
		b.deliver(models.Progress{}, true)

		snap := tr.Store().Snapshot()
		if snap.Get("base-set", "58", "normal") {
			t.Error("local progress should not survive joining an empty collection")
		}
		if _, ok := snap["custom-psyduck"]; !ok {
			t.Error("expected scopes to be re-initialised")
		}
		if !repo.Last().Equal(snap) {
			t.Error("expected empty snapshot to be persisted")
		}
		if b.pushCount() != 0 {
			t.Error("joining must not upload local progress")
		}
	})

	t.Run("connect failure keeps working locally", func(t *testing.T) {
		b := &fakeBridge{subErr: shared.ErrServiceUnavailable}
		tr := newTestTracker(t, nil, b)
		tr.Start(ctx)

		if err := tr.Connect(ctx, "abc"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("Connect() error = %v", err)
		}
		if tr.Status() != bridge.Offline {
			t.Errorf("status = %v", tr.Status())
		}
		if tr.CollectionID() != "" {
			t.Errorf("collection = %q", tr.CollectionID())
		}
		if _, err := tr.Toggle(ctx, "base-set", "58", "normal"); err != nil {
			t.Errorf("Toggle() error = %v", err)
		}
	})

	t.Run("switching collections", func(t *testing.T) {
		b := &fakeBridge{}
		tr := newTestTracker(t, nil, b)
		tr.Start(ctx)
		tr.Connect(ctx, "one")
		tr.Connect(ctx, "two")
		if tr.CollectionID() != "two" {
			t.Errorf("collection = %q", tr.CollectionID())
		}
		if len(b.subscribed) != 2 {
			t.Errorf("subscribed = %v", b.subscribed)
		}
	})

	t.Run("no bridge", func(t *testing.T) {
		tr := newTestTracker(t, nil, nil)
		if err := tr.Connect(ctx, "abc"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("Connect() error = %v", err)
		}
		if tr.Status() != bridge.Disconnected {
			t.Errorf("status = %v", tr.Status())
		}
	})

	t.Run("close keeps a pending confirmation", func(t *testing.T) {
		tr := newTestTracker(t, nil, &fakeBridge{})
		tr.Start(ctx)
		tr.Toggle(ctx, "custom-psyduck", "2", "1st-edition")
		tr.Toggle(ctx, "custom-psyduck", "2", "unlimited")
		res, _ := tr.Toggle(ctx, "custom-psyduck", "2", "unlimited")
		if res.State != progress.PendingConfirmation {
			t.Fatalf("state = %v", res.State)
		}

		if err := tr.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		got, ok := res.Confirmation.Resolution()
		if !ok || got.State != progress.Cancelled || !got.Revert {
			t.Errorf("resolution = %+v, resolved = %v", got, ok)
		}
		if !tr.Store().Get("custom-psyduck", "2", "unlimited") {
			t.Error("close must keep the flag")
		}
		if err := tr.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	t.Run("close", func(t *testing.T) {
		b := &fakeBridge{}
		tr := newTestTracker(t, nil, b)
		tr.Start(ctx)
		tr.Connect(ctx, "abc")
		if err := tr.Close(); err != nil {
			t.Fatal(err)
		}
		if !b.closed || tr.CollectionID() != "" {
			t.Error("expected bridge to be closed")
		}
	})
}

func TestTrackerImportAndStats(t *testing.T) {
	ctx := context.Background()
	repo := &tu.Persister{}
	b := &fakeBridge{}
	tr := newTestTracker(t, repo, b)
	tr.Start(ctx)
	tr.Connect(ctx, "abc")

	incoming := models.Progress{"base-set": {"4": {"holo": true, "reverse-holo": true}, "58": {"normal": true}}}
	changed, err := tr.Import(ctx, incoming)
	if err != nil || !changed {
		t.Fatalf("Import() = %v, %v", changed, err)
	}
	if !tr.Store().Snapshot().Equal(incoming) {
		t.Errorf("store = %v", tr.Store().Snapshot())
	}
	if b.pushCount() != 1 || !repo.Last().Equal(incoming) {
		t.Error("import should persist and push")
	}

	changed, _ = tr.Import(ctx, incoming)
	if changed {
		t.Error("re-importing the same progress should be a no-op")
	}

	st, err := tr.Stats("base-set")
	if err != nil {
		t.Fatal(err)
	}
	if st.Collected != 3 || st.Total != 4 || st.CompleteCards != 1 || st.PercentDisplay != "75.0" {
		t.Errorf("Stats() = %+v", st)
	}

	if _, err := tr.Stats("nope"); !errors.Is(err, shared.ErrSetNotFound) {
		t.Errorf("Stats(nope) error = %v", err)
	}
	if all := tr.AllStats(); len(all) != 2 {
		t.Errorf("AllStats() = %v", all)
	}
}
