// package models defines the data model for the collection tracker
package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
)

// Variant names used across the catalog and progress data.
const (
	VariantSingle       = "single"
	VariantNormal       = "normal"
	VariantHolo         = "holo"
	VariantReverseHolo  = "reverse-holo"
	VariantFirstEdition = "1st-edition"
	VariantUnlimited    = "unlimited"
	VariantPokeBall     = "pokeball"
	VariantMasterBall   = "masterball"
)

// VariantFlags maps a variant name to whether it has been collected.
// A missing variant reads as false.
type VariantFlags map[string]bool

// CardProgress maps a card identifier to its variant flags.
type CardProgress map[string]VariantFlags

// Progress is the whole collection: scope key to card identifier to variant flags.
//
// Progress is a plain value. Callers that share it between goroutines copy it with [Progress.Clone].
type Progress map[string]CardProgress

// Get returns the flag at (scope, card, variant), treating any missing level as false.
func (p Progress) Get(scope, card, variant string) bool {
	return p[scope][card][variant]
}

// Set writes the flag at (scope, card, variant), creating intermediate levels as needed.
// It reports whether the stored value changed.
func (p Progress) Set(scope, card, variant string, value bool) bool {
	cards, ok := p[scope]
	if !ok {
		cards = CardProgress{}
		p[scope] = cards
	}
	flags, ok := cards[card]
	if !ok {
		flags = VariantFlags{}
		cards[card] = flags
	}
	prev, existed := flags[variant]
	flags[variant] = value
	return !existed || prev != value
}

// Card returns a copy of the flags recorded for a card. The result is never nil.
func (p Progress) Card(scope, card string) VariantFlags {
	out := VariantFlags{}
	maps.Copy(out, p[scope][card])
	return out
}

// EnsureScope creates an empty entry for scope if none exists and reports whether it did.
func (p Progress) EnsureScope(scope string) bool {
	if _, ok := p[scope]; ok {
		return false
	}
	p[scope] = CardProgress{}
	return true
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	for scope, cards := range p {
		cc := make(CardProgress, len(cards))
		for card, flags := range cards {
			fc := make(VariantFlags, len(flags))
			maps.Copy(fc, flags)
			cc[card] = fc
		}
		out[scope] = cc
	}
	return out
}

// Equal reports whether two Progress values record the same flags.
// A missing flag and an explicit false are considered equal.
func (p Progress) Equal(other Progress) bool {
	return p.contains(other) && other.contains(p)
}

func (p Progress) contains(other Progress) bool {
	for scope, cards := range p {
		for card, flags := range cards {
			for variant, value := range flags {
				if other.Get(scope, card, variant) != value {
					return false
				}
			}
		}
	}
	return true
}

// Scopes returns the scope keys in sorted order.
func (p Progress) Scopes() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that no level of the tree uses an empty key.
func (p Progress) Validate() error {
	for scope, cards := range p {
		if scope == "" {
			return fmt.Errorf("progress has an empty scope key")
		}
		for card, flags := range cards {
			if card == "" {
				return fmt.Errorf("scope %s has an empty card key", scope)
			}
			for variant := range flags {
				if variant == "" {
					return fmt.Errorf("card %s/%s has an empty variant key", scope, card)
				}
			}
		}
	}
	return nil
}

// ParseProgress decodes a JSON progress document.
// A JSON null decodes to an empty Progress. Any value that is not a nested object of booleans is an error.
func ParseProgress(data []byte) (Progress, error) {
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	if p == nil {
		p = Progress{}
	}
	for scope, cards := range p {
		if cards == nil {
			p[scope] = CardProgress{}
			continue
		}
		for card, flags := range cards {
			if flags == nil {
				cards[card] = VariantFlags{}
			}
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
