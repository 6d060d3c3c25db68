package images

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	dreambornBase   = "https://cdn.dreamborn.ink/images/en/cards/"
	pokemonTCGBase  = "https://images.pokemontcg.io/"
	scrydexBase     = "https://images.scrydex.com/pokemon/"
	DefaultLocalDir = "./Images/lorcana"
)

// localExtensions are tried in order for locally stored Lorcana images.
var localExtensions = []string{".jpg", ".png", ".webp"}

// Index looks up card image URLs for one set.
type Index interface {
	SetImages(ctx context.Context, code string) (map[string]string, error)
}

// ResolverOpts configures a [Resolver].
type ResolverOpts struct {
	Index Index
	// Codes maps a Lorcana scope to its index set code. Scopes without a code never query the index.
	Codes map[string]string
	// LocalRoot is the directory prefix for local Lorcana images.
	LocalRoot string
	// ScrydexSets lists set ids whose images come from the alternate host.
	ScrydexSets []string
	Logger      *log.Logger
}

// Resolver builds ordered image candidate lists for cards.
//
// Index lookups are cached per scope for the resolver's lifetime. Concurrent lookups of the same scope share a
// single request, and a failed request caches an empty result.
type Resolver struct {
	index     Index
	codes     map[string]string
	localRoot string
	scrydex   map[string]bool
	logger    *log.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]map[string]string
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOpts) *Resolver {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.LocalRoot == "" {
		opts.LocalRoot = DefaultLocalDir
	}
	scrydex := make(map[string]bool, len(opts.ScrydexSets))
	for _, s := range opts.ScrydexSets {
		scrydex[s] = true
	}
	return &Resolver{
		index:     opts.Index,
		codes:     maps.Clone(opts.Codes),
		localRoot: strings.TrimSuffix(opts.LocalRoot, "/"),
		scrydex:   scrydex,
		logger:    opts.Logger,
		cache:     map[string]map[string]string{},
	}
}

// Cached returns the lookup map for scope if one has been fetched.
func (r *Resolver) Cached(scope string) (map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.cache[scope]
	if !ok {
		return nil, false
	}
	return maps.Clone(m), true
}

// Invalidate drops the cached lookup for scope so the next [Resolver.Lookup] fetches again.
func (r *Resolver) Invalidate(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, scope)
}

func (r *Resolver) store(scope string, m map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[scope] = m
}

// Lookup returns card number to image URL for a Lorcana scope, fetching it once.
//
// It never fails: scopes without an index code and failed fetches both yield an empty map, which is cached.
// The fetch runs detached from ctx's cancellation so one caller giving up does not fail the others.
func (r *Resolver) Lookup(ctx context.Context, scope string) map[string]string {
	if m, ok := r.Cached(scope); ok {
		return m
	}

	code := r.codes[scope]
	if code == "" || r.index == nil {
		r.store(scope, map[string]string{})
		return map[string]string{}
	}

	v, _, _ := r.group.Do(scope, func() (any, error) {
		if m, ok := r.Cached(scope); ok {
			return m, nil
		}

		m, err := r.index.SetImages(context.WithoutCancel(ctx), code)
		if err != nil {
			r.logger.Warn("card index lookup failed", "scope", scope, "code", code, "error", err)
			m = map[string]string{}
		}
		if m == nil {
			m = map[string]string{}
		}
		r.store(scope, m)
		r.logger.Debug("card index cached", "scope", scope, "cards", len(m))
		return m, nil
	})

	return maps.Clone(v.(map[string]string))
}

// LorcanaURLs returns the candidate image URLs for a Lorcana card in fallback order, using only what is already
// cached: the Dreamborn CDN when the card has an id, the index URL when the scope's lookup has run and lists the
// card, then local jpg, png and webp files.
func (r *Resolver) LorcanaURLs(scope string, card models.Card) []string {
	var urls []string
	if card.DreambornID != "" {
		urls = append(urls, dreambornBase+card.DreambornID)
	}

	r.mu.RLock()
	if u := r.cache[scope][card.Number]; u != "" {
		urls = append(urls, u)
	}
	r.mu.RUnlock()

	padded := models.PaddedNumber(card.Number)
	for _, ext := range localExtensions {
		urls = append(urls, fmt.Sprintf("%s/%s/%s%s", r.localRoot, scope, padded, ext))
	}
	return urls
}

// PokemonURL builds the image URL for a card with an api id of the form "{setId}-{number}".
// The bool is false when the card has no usable id.
func (r *Resolver) PokemonURL(card models.Card) (string, bool) {
	id := card.APIID
	if id == "" {
		id = card.ImageID
	}
	i := strings.LastIndex(id, "-")
	if i <= 0 || i == len(id)-1 {
		return "", false
	}
	setID, num := id[:i], id[i+1:]
	if r.scrydex[setID] {
		return fmt.Sprintf("%s%s-%s/large", scrydexBase, setID, num), true
	}
	return fmt.Sprintf("%s%s/%s.png", pokemonTCGBase, setID, num), true
}

// URLs returns the candidate image URLs for a card using only cached lookups.
func (r *Resolver) URLs(set *models.Set, card models.Card) []string {
	if set.Kind == models.KindLorcana {
		return r.LorcanaURLs(set.Scope(), card)
	}
	if u, ok := r.PokemonURL(card); ok {
		return []string{u}
	}
	return nil
}

// Resolve fetches the scope's index lookup if needed and returns the card's candidate URLs.
func (r *Resolver) Resolve(ctx context.Context, set *models.Set, card models.Card) []string {
	if set.Kind == models.KindLorcana {
		r.Lookup(ctx, set.Scope())
	}
	return r.URLs(set, card)
}
