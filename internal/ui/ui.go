package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/images"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/desertthunder/binder/internal/tracker"
)

var openInBrowser = shared.OpenBrowser

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SetListView ViewState = iota
	CardListView
)

// ModelOpts holds the TUI's dependencies. Resolver and Prober are optional.
type ModelOpts struct {
	Tracker  *tracker.Tracker
	Resolver *images.Resolver
	Prober   *images.Prober
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	tracker   *tracker.Tracker
	resolver  *images.Resolver
	prober    *images.Prober
	width     int
	height    int
	setList   list.Model
	cardList  list.Model
	set       *models.Set
	filter    catalog.Filter
	rarities  []string
	rarity    int
	search    textinput.Model
	searching bool
	pending   *progress.Confirmation
	notice    string
	image     string
	imageURL  string
	status    bridge.Status
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model over a started tracker.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	search := textinput.New()
	search.Placeholder = "name or number"
	search.Prompt = "/ "

	m := &Model{
		ctx:      ctx,
		view:     SetListView,
		tracker:  opts.Tracker,
		resolver: opts.Resolver,
		prober:   opts.Prober,
		setList:  newList("Sets"),
		cardList: newList("Cards"),
		rarity:   -1,
		search:   search,
		status:   opts.Tracker.Status(),
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.refresh()
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	return l
}

// Init starts listening for tracker updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.setList.SetSize(msg.Width-4, msg.Height-8)
		m.cardList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		if m.pending != nil {
			if model, cmd, ok := m.handleConfirmKeys(msg); ok {
				return model, cmd
			}
		}
		switch m.view {
		case SetListView:
			return m.handleSetListKeys(msg)
		case CardListView:
			return m.handleCardListKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTrackerUpdate:
		m.apply(msg.data.(tracker.Update))
		m.refresh()
		return m, m.waitForUpdate()

	case MsgImageResolved:
		data := msg.data.(struct {
			card string
			url  string
		})
		m.image = fmt.Sprintf("#%s → %s", data.card, data.url)
		m.imageURL = ""
		if data.url != "" && data.url != noImage {
			m.imageURL = data.url
		}
		return m, nil

	case MsgImageOpened:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
		}
		return m, nil

	case MsgToggled:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
		}
		return m, nil

	case MsgTick:
		if m.pending != nil && m.tracker.Pending() == nil {
			m.pending = nil
		}
		return m, tick()
	}
	return m, nil
}

// apply folds one tracker update into view state.
func (m *Model) apply(u tracker.Update) {
	switch u.Kind {
	case tracker.ConfirmationRequested:
		m.pending = u.Confirmation
		m.notice = ""
	case tracker.ConfirmationResolved:
		m.pending = m.tracker.Pending()
		switch {
		case u.Resolution.State == progress.Applied:
			m.notice = fmt.Sprintf("Unchecked %s on #%s", u.Variant, u.Card)
		case u.Resolution.Revert:
			m.notice = fmt.Sprintf("Kept %s on #%s", u.Variant, u.Card)
		}
	case tracker.SnapshotReceived:
		m.notice = "Updated from sync"
	case tracker.StatusChanged:
		m.status = u.Status
	case tracker.MigrationApplied:
		m.notice = "Migrated edition variants"
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case SetListView:
		body = m.renderSetList()
	case CardListView:
		body = m.renderCardList()
	}

	sections := []string{m.renderStatus(), body}
	if m.pending != nil {
		sections = append(sections, m.renderToast())
	}
	if m.err != nil {
		sections = append(sections, styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.notice != "" {
		sections = append(sections, styles.ok.Render(m.notice))
	}
	return strings.Join(sections, "\n")
}

func (m *Model) handleSetListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.setList.SelectedItem().(setItem); ok {
			m.openSet(item.set)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.setList, cmd = m.setList.Update(msg)
	return m, cmd
}

func (m *Model) handleCardListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = SetListView
		m.set = nil
		m.image, m.imageURL = "", ""
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		n, _ := strconv.Atoi(msg.String())
		return m, m.toggle(n - 1)
	case key.Matches(msg, m.keys.filter):
		m.filter.Completion = m.filter.Completion.Next()
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.rarity):
		m.cycleRarity()
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.search):
		m.searching = true
		m.search.SetValue(m.filter.Query)
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.image):
		return m, m.resolveImage()
	case key.Matches(msg, m.keys.reload):
		if m.resolver != nil && m.set != nil {
			m.resolver.Invalidate(m.set.Scope())
		}
		return m, m.resolveImage()
	case key.Matches(msg, m.keys.open):
		return m, m.openImage()
	}

	var cmd tea.Cmd
	m.cardList, cmd = m.cardList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	c := m.pending
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, func() tea.Msg { return toggledMsg(ignoreResolved(c.Uncheck())) }, true
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		return m, func() tea.Msg { return toggledMsg(ignoreResolved(c.Keep())) }, true
	}
	return m, nil, false
}

// ignoreResolved drops the error for answering a confirmation that already timed out.
func ignoreResolved(err error) error {
	if errors.Is(err, progress.ErrConfirmationResolved) {
		return nil
	}
	return err
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		if msg.Type == tea.KeyEsc {
			m.filter.Query = ""
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.filter.Query = m.search.Value()
	m.refresh()
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SetListView:
		m.setList, cmd = m.setList.Update(msg)
	case CardListView:
		m.cardList, cmd = m.cardList.Update(msg)
	}
	return m, cmd
}

func (m *Model) openSet(set *models.Set) {
	m.set = set
	m.view = CardListView
	m.filter = catalog.Filter{}
	m.rarities = catalog.Rarities(set)
	m.rarity = -1
	m.image, m.imageURL = "", ""
	m.cardList.Title = set.Title()
	m.cardList.Select(0)
	m.refresh()
}

func (m *Model) cycleRarity() {
	m.rarity++
	if m.rarity >= len(m.rarities) {
		m.rarity = -1
	}
	if m.rarity < 0 {
		m.filter.Rarities = nil
		return
	}
	m.filter.Rarities = []string{m.rarities[m.rarity]}
}

// refresh rebuilds list items from the store.
func (m *Model) refresh() {
	stats := m.tracker.AllStats()
	sets := m.tracker.Catalog().Sets()
	items := make([]list.Item, 0, len(sets))
	for i, set := range sets {
		items = append(items, setItem{set: set, stats: stats[i]})
	}
	m.setList.SetItems(items)

	if m.set == nil {
		return
	}

	store := m.tracker.Store()
	scope := m.set.Scope()
	cards := m.filter.Apply(m.set.Cards, func(c models.Card) bool {
		return store.ComputeCompletion(scope, c.Number, catalog.Variants(m.set, c))
	})

	cardItems := make([]list.Item, 0, len(cards))
	for _, c := range cards {
		item := cardItem{card: c, complete: true}
		for _, v := range catalog.Variants(m.set, c) {
			got := store.Get(scope, c.Number, v)
			item.variants = append(item.variants, variantState{name: v, collected: got})
			item.complete = item.complete && got
		}
		cardItems = append(cardItems, item)
	}
	m.cardList.SetItems(cardItems)
}

func (m *Model) toggle(index int) tea.Cmd {
	item, ok := m.cardList.SelectedItem().(cardItem)
	if !ok || index < 0 || index >= len(item.variants) {
		return nil
	}
	m.err = nil
	scope, number, variant := m.set.Scope(), item.card.Number, item.variants[index].name
	return func() tea.Msg {
		_, err := m.tracker.Toggle(m.ctx, scope, number, variant)
		return toggledMsg(err)
	}
}

func (m *Model) resolveImage() tea.Cmd {
	item, ok := m.cardList.SelectedItem().(cardItem)
	if !ok || m.resolver == nil {
		return nil
	}
	set, card := m.set, item.card
	return func() tea.Msg {
		urls := m.resolver.Resolve(m.ctx, set, card)
		url := noImage
		if m.prober != nil {
			url = m.prober.First(m.ctx, urls)
		} else if len(urls) > 0 {
			url = urls[0]
		}
		return imageResolvedMsg(card.Number, url)
	}
}

const noImage = "no image"

func (m *Model) openImage() tea.Cmd {
	if m.imageURL == "" {
		return nil
	}
	url := m.imageURL
	return func() tea.Msg {
		return imageOpenedMsg(openInBrowser(url))
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.tracker.Updates()
	return func() tea.Msg {
		select {
		case u := <-updates:
			return trackerUpdateMsg(u)
		case <-m.ctx.Done():
			return Msg{kind: MsgUpdatesClosed}
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) renderStatus() string {
	label := "Local"
	var style lipgloss.Style
	switch m.status {
	case bridge.Synced:
		label, style = "● Synced", styles.ok
	case bridge.Connecting:
		label, style = "◌ Connecting", styles.warn
	case bridge.Offline:
		label, style = "○ Offline", styles.err
	default:
		style = styles.help
	}
	if id := m.tracker.CollectionID(); id != "" {
		label = fmt.Sprintf("%s · %s", label, id)
	}
	return style.Render(label)
}

func (m *Model) renderSetList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.setList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderCardList() string {
	filters := []string{string(orAll(m.filter.Completion))}
	if len(m.filter.Rarities) > 0 {
		filters = append(filters, m.filter.Rarities[0])
	}
	if m.filter.Query != "" {
		filters = append(filters, fmt.Sprintf("%q", m.filter.Query))
	}

	var stats string
	if st, err := m.tracker.Stats(m.set.Scope()); err == nil {
		stats = st.String()
	}
	header := styles.help.Render(fmt.Sprintf("%s • filter: %s", stats, strings.Join(filters, ", ")))

	lines := []string{header, m.cardList.View()}
	if m.searching {
		lines = append(lines, m.search.View())
	}
	if m.image != "" {
		lines = append(lines, styles.help.Render(m.image))
	}

	helpKeys := []key.Binding{m.keys.toggle, m.keys.filter, m.keys.rarity, m.keys.search, m.keys.image, m.keys.open, m.keys.back, m.keys.quit}
	lines = append(lines, m.help.ShortHelpView(helpKeys))
	return strings.Join(lines, "\n")
}

func (m *Model) renderToast() string {
	remaining := time.Until(m.pending.Deadline()).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	text := fmt.Sprintf("%s  [y] uncheck  [n] keep  (%s)", m.pending.Prompt(), remaining)
	return styles.toast.Render(text)
}

func orAll(c catalog.Completion) catalog.Completion {
	if c == "" {
		return catalog.CompletionAll
	}
	return c
}
