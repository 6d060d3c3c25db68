package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds how many set files are read at once.
const DefaultBatchSize = 10

// Directories under the data root holding each kind of set.
var kindDirs = []struct {
	kind models.SetKind
	dir  string
}{
	{models.KindOfficial, filepath.Join("pokemon", "official-sets")},
	{models.KindCustom, filepath.Join("pokemon", "custom-sets")},
	{models.KindLorcana, filepath.Join("lorcana", "sets")},
}

// Catalog is the read-only set of card definitions, indexed by progress scope.
type Catalog struct {
	mu     sync.RWMutex
	sets   map[string]*models.Set
	scopes []string
}

// New creates a Catalog from already-built sets.
func New(sets ...*models.Set) (*Catalog, error) {
	c := &Catalog{sets: map[string]*models.Set{}}
	for _, s := range sets {
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadOpts configures [Load].
type LoadOpts struct {
	Dir       string
	BatchSize int
	Logger    *log.Logger
}

// Load reads every set file under opts.Dir.
//
// Missing kind directories are skipped. Unreadable or invalid set files are logged and skipped. Only
// cancellation of ctx fails the load.
func Load(ctx context.Context, opts LoadOpts) (*Catalog, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	c := &Catalog{sets: map[string]*models.Set{}}

	for _, kd := range kindDirs {
		dir := filepath.Join(opts.Dir, kd.dir)
		paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil || len(paths) == 0 {
			opts.Logger.Debug("no set files", "kind", kd.kind, "dir", dir)
			continue
		}
		sort.Strings(paths)

		loaded := make([]*models.Set, len(paths))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.BatchSize)
		for i, path := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				set, err := ReadSetFile(path, kd.kind)
				if err != nil {
					opts.Logger.Warn("skipping set", "path", path, "error", err)
					return nil
				}
				loaded[i] = set
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		count := 0
		for _, set := range loaded {
			if set == nil {
				continue
			}
			if err := c.Add(set); err != nil {
				opts.Logger.Warn("skipping set", "set", set.Key, "error", err)
				continue
			}
			count++
		}
		opts.Logger.Info("loaded sets", "kind", kd.kind, "count", count)
	}

	return c, nil
}

type setFile struct {
	Name                 string              `json:"name"`
	DisplayName          string              `json:"displayName"`
	Description          string              `json:"description"`
	TotalCards           int                 `json:"totalCards"`
	MainSet              int                 `json:"mainSet"`
	SetCode              string              `json:"setCode"`
	ReleaseDate          string              `json:"releaseDate"`
	Block                string              `json:"block"`
	BlockCode            string              `json:"blockCode"`
	HasPokeBallVariant   bool                `json:"hasPokeBallVariant"`
	HasMasterBallVariant bool                `json:"hasMasterBallVariant"`
	HasFirstEdition      bool                `json:"hasFirstEdition"`
	SingleVariantOnly    *bool               `json:"singleVariantOnly"`
	Cards                map[string]cardFile `json:"cards"`
}

type cardFile struct {
	Name        string   `json:"name"`
	Rarity      string   `json:"rarity"`
	Type        string   `json:"type"`
	ImageID     string   `json:"imageId"`
	APIID       string   `json:"apiId"`
	DreambornID string   `json:"dreambornId"`
	Variants    []string `json:"variants"`
}

// ReadSetFile decodes one set file. The set key is the file name without its extension.
func ReadSetFile(path string, kind models.SetKind) (*models.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read set file: %w", err)
	}
	key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseSet(key, kind, data)
}

// ParseSet decodes a set definition whose cards are keyed by card number.
func ParseSet(key string, kind models.SetKind, data []byte) (*models.Set, error) {
	var f setFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidSet, key, err)
	}

	set := &models.Set{
		Key:                  key,
		Kind:                 kind,
		Name:                 f.Name,
		DisplayName:          f.DisplayName,
		Description:          f.Description,
		SetCode:              f.SetCode,
		Block:                f.Block,
		BlockCode:            f.BlockCode,
		ReleaseDate:          f.ReleaseDate,
		TotalCards:           f.TotalCards,
		MainSet:              f.MainSet,
		HasFirstEdition:      f.HasFirstEdition,
		HasPokeBallVariant:   f.HasPokeBallVariant,
		HasMasterBallVariant: f.HasMasterBallVariant,
	}

	switch {
	case f.SingleVariantOnly != nil:
		set.SingleVariantOnly = *f.SingleVariantOnly
	case kind == models.KindCustom:
		set.SingleVariantOnly = true
	}

	defaultType := "pokemon"
	if kind == models.KindLorcana {
		defaultType = "character"
	}

	for num, cf := range f.Cards {
		card := models.Card{
			Number:      CardNumber(num),
			Name:        cf.Name,
			Rarity:      cf.Rarity,
			Type:        cf.Type,
			ImageID:     cf.ImageID,
			APIID:       cf.APIID,
			DreambornID: cf.DreambornID,
			Variants:    cf.Variants,
		}
		if card.Type == "" {
			card.Type = defaultType
		}
		set.Cards = append(set.Cards, card)
	}
	sortCards(set.Cards)

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidSet, err)
	}
	return set, nil
}

// CardNumber normalises a card key to its leading integer ("007" and "7a" both become "7").
// Keys without a leading digit are kept as written.
func CardNumber(key string) string {
	key = strings.TrimSpace(key)
	end := 0
	for end < len(key) && key[end] >= '0' && key[end] <= '9' {
		end++
	}
	if end == 0 {
		return key
	}
	n, err := strconv.Atoi(key[:end])
	if err != nil {
		return key
	}
	return strconv.Itoa(n)
}

func sortCards(cards []models.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, aerr := strconv.Atoi(cards[i].Number)
		b, berr := strconv.Atoi(cards[j].Number)
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return cards[i].Number < cards[j].Number
		}
	})
}

// Add registers a set under its scope, replacing any set already there.
func (c *Catalog) Add(set *models.Set) error {
	if set == nil {
		return fmt.Errorf("%w: nil set", shared.ErrInvalidSet)
	}
	if err := set.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidSet, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	scope := set.Scope()
	if _, exists := c.sets[scope]; !exists {
		c.scopes = append(c.scopes, scope)
	}
	c.sets[scope] = set
	return nil
}

// Scopes returns every scope in load order.
func (c *Catalog) Scopes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.scopes...)
}

// Sets returns every set in load order, optionally restricted to the given kinds.
func (c *Catalog) Sets(kinds ...models.SetKind) []*models.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Set, 0, len(c.scopes))
	for _, scope := range c.scopes {
		set := c.sets[scope]
		if len(kinds) > 0 && !containsKind(kinds, set.Kind) {
			continue
		}
		out = append(out, set)
	}
	return out
}

func containsKind(kinds []models.SetKind, k models.SetKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Lookup returns the set tracked under scope.
func (c *Catalog) Lookup(scope string) (*models.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.sets[scope]
	return set, ok
}

// Card finds a card by scope and number.
func (c *Catalog) Card(scope, number string) (*models.Set, models.Card, error) {
	set, ok := c.Lookup(scope)
	if !ok {
		return nil, models.Card{}, fmt.Errorf("%w: %s", shared.ErrSetNotFound, scope)
	}
	card, ok := set.Card(CardNumber(number))
	if !ok {
		return set, models.Card{}, fmt.Errorf("%w: %s/%s", shared.ErrCardNotFound, scope, number)
	}
	return set, card, nil
}

// Applicable returns the variants that make the card complete. The bool is false when the card is not in the catalog.
func (c *Catalog) Applicable(scope, number string) ([]string, bool) {
	set, card, err := c.Card(scope, number)
	if err != nil {
		return nil, false
	}
	return Variants(set, card), true
}

// Len returns the number of sets.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}
