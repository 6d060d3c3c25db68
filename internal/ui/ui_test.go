package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/images"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
	tu "github.com/desertthunder/binder/internal/testing"
	"github.com/desertthunder/binder/internal/tracker"
)

func newTestModel(t *testing.T) (*Model, *tracker.Tracker) {
	t.Helper()
	c, err := catalog.New(&models.Set{
		Key:         "base-set",
		Kind:        models.KindOfficial,
		Name:        "Base",
		DisplayName: "Base Set",
		Cards: []models.Card{
			{Number: "4", Name: "Charizard", Rarity: "Rare Holo"},
			{Number: "58", Name: "Pikachu", Rarity: "Common"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tr := tracker.New(tracker.Opts{
		Repo:           &tu.Persister{},
		Catalog:        c,
		Logger:         shared.NewLogger(&strings.Builder{}),
		ConfirmTimeout: time.Minute,
	})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	m := NewModel(context.Background(), ModelOpts{Tracker: tr})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, tr
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command, if any, feeding its message back.
func press(m *Model, k tea.KeyMsg) {
	_, cmd := m.Update(k)
	if cmd == nil {
		return
	}
	if msg, ok := cmd().(Msg); ok {
		m.Update(msg)
	}
}

// flush feeds every queued tracker update into the model.
func flush(m *Model, tr *tracker.Tracker) {
	for {
		select {
		case u := <-tr.Updates():
			m.Update(trackerUpdateMsg(u))
		default:
			return
		}
	}
}

func TestModelNavigation(t *testing.T) {
	m, _ := newTestModel(t)

	if !strings.Contains(m.View(), "Base Set") {
		t.Errorf("set list missing set title:\n%s", m.View())
	}

	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.view != CardListView || m.set == nil || m.set.Key != "base-set" {
		t.Fatalf("expected card view for base-set, got view %v", m.view)
	}
	if len(m.cardList.Items()) != 2 {
		t.Errorf("expected 2 cards, got %d", len(m.cardList.Items()))
	}

	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.view != SetListView || m.set != nil {
		t.Error("expected to return to set list")
	}
}

func TestModelToggle(t *testing.T) {
	m, tr := newTestModel(t)
	press(m, tea.KeyMsg{Type: tea.KeyEnter})

	press(m, runes("1"))
	press(m, runes("2"))
	flush(m, tr)

	store := tr.Store()
	if !store.Get("base-set", "4", "holo") || !store.Get("base-set", "4", "reverse-holo") {
		t.Fatalf("expected both variants checked: %v", store.Card("base-set", "4"))
	}
	if item := m.cardList.Items()[0].(cardItem); !item.complete {
		t.Error("expected card to render as complete")
	}

	press(m, runes("1"))
	flush(m, tr)
	if m.pending == nil {
		t.Fatal("expected a pending confirmation")
	}
	if !strings.Contains(m.View(), "Uncheck holo on Charizard?") {
		t.Errorf("toast missing:\n%s", m.View())
	}
	if !store.Get("base-set", "4", "holo") {
		t.Error("flag must not change before confirmation")
	}

	t.Run("keep", func(t *testing.T) {
		press(m, runes("n"))
		flush(m, tr)
		if m.pending != nil {
			t.Error("expected toast to close")
		}
		if !store.Get("base-set", "4", "holo") {
			t.Error("keep must leave the flag set")
		}
		if !strings.Contains(m.notice, "Kept holo") {
			t.Errorf("notice = %q", m.notice)
		}
	})

	t.Run("uncheck", func(t *testing.T) {
		press(m, runes("1"))
		flush(m, tr)
		press(m, runes("y"))
		flush(m, tr)
		if store.Get("base-set", "4", "holo") {
			t.Error("expected holo to be unchecked")
		}
		if m.pending != nil {
			t.Error("expected toast to close")
		}
	})

	t.Run("out of range variant", func(t *testing.T) {
		_, cmd := m.Update(runes("9"))
		if cmd != nil {
			t.Error("expected no command for a missing variant")
		}
	})
}

func TestModelFilters(t *testing.T) {
	m, tr := newTestModel(t)
	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	press(m, runes("1"))
	press(m, runes("2"))
	flush(m, tr)

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.filter.Completion != catalog.CompletionIncomplete {
		t.Fatalf("completion = %v", m.filter.Completion)
	}
	items := m.cardList.Items()
	if len(items) != 1 || items[0].(cardItem).card.Number != "58" {
		t.Errorf("incomplete filter items = %v", items)
	}

	press(m, tea.KeyMsg{Type: tea.KeyTab})
	items = m.cardList.Items()
	if len(items) != 1 || items[0].(cardItem).card.Number != "4" {
		t.Errorf("complete filter items = %v", items)
	}
	press(m, tea.KeyMsg{Type: tea.KeyTab})

	press(m, runes("r"))
	if len(m.filter.Rarities) != 1 || m.filter.Rarities[0] != "common" {
		t.Fatalf("rarities = %v", m.filter.Rarities)
	}
	if n := len(m.cardList.Items()); n != 1 {
		t.Errorf("rarity filter items = %d", n)
	}
	press(m, runes("r"))
	press(m, runes("r"))
	if m.filter.Rarities != nil {
		t.Errorf("expected rarity filter to cycle back, got %v", m.filter.Rarities)
	}

	press(m, runes("/"))
	if !m.searching {
		t.Fatal("expected search mode")
	}
	for _, r := range "pika" {
		m.Update(runes(string(r)))
	}
	if m.filter.Query != "pika" || len(m.cardList.Items()) != 1 {
		t.Errorf("query = %q, items = %d", m.filter.Query, len(m.cardList.Items()))
	}
	press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.searching || m.filter.Query != "" || len(m.cardList.Items()) != 2 {
		t.Error("esc should clear the search")
	}
}

type countingIndex struct {
	calls int
}

func (i *countingIndex) SetImages(ctx context.Context, code string) (map[string]string, error) {
	i.calls++
	return map[string]string{"1": "https://img.example/1.avif"}, nil
}

func TestModelImages(t *testing.T) {
	c, err := catalog.New(&models.Set{
		Key:   "first-chapter",
		Kind:  models.KindLorcana,
		Name:  "The First Chapter",
		Cards: []models.Card{{Number: "1", Name: "Ariel", Rarity: "Common"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	tr := tracker.New(tracker.Opts{Repo: &tu.Persister{}, Catalog: c, Logger: shared.NewLogger(&strings.Builder{})})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	index := &countingIndex{}
	resolver := images.NewResolver(images.ResolverOpts{
		Index:  index,
		Codes:  map[string]string{"first-chapter": "1"},
		Logger: shared.NewLogger(&strings.Builder{}),
	})
	m := NewModel(context.Background(), ModelOpts{Tracker: tr, Resolver: resolver})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	var opened []string
	orig := openInBrowser
	openInBrowser = func(url string) error {
		opened = append(opened, url)
		return nil
	}
	t.Cleanup(func() { openInBrowser = orig })

	press(m, runes("o"))
	press(m, tea.KeyMsg{Type: tea.KeyEnter})
	press(m, runes("o"))
	if len(opened) != 0 {
		t.Fatalf("expected nothing to open before resolving, got %v", opened)
	}

	press(m, runes("i"))
	if !strings.Contains(m.View(), "#1 → https://img.example/1.avif") {
		t.Errorf("resolved image missing:\n%s", m.View())
	}
	press(m, runes("i"))
	if index.calls != 1 {
		t.Errorf("expected cached lookup, got %d index calls", index.calls)
	}

	press(m, runes("I"))
	if index.calls != 2 {
		t.Errorf("expected refetch after reload, got %d index calls", index.calls)
	}

	press(m, runes("o"))
	if len(opened) != 1 || opened[0] != "https://img.example/1.avif" {
		t.Errorf("opened = %v", opened)
	}
}
