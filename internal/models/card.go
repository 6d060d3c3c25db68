package models

import (
	"fmt"
	"strings"
)

// SetKind distinguishes the three families of sets the catalog holds.
type SetKind string

const (
	KindOfficial SetKind = "official"
	KindCustom   SetKind = "custom"
	KindLorcana  SetKind = "lorcana"
)

// CustomScopePrefix is prepended to a custom set's key to form its progress scope.
const CustomScopePrefix = "custom-"

// Card is a single entry in a set's card list.
type Card struct {
	Number      string   `json:"number"`
	Name        string   `json:"name"`
	Rarity      string   `json:"rarity,omitempty"`
	Type        string   `json:"type,omitempty"`
	ImageID     string   `json:"imageId,omitempty"`
	APIID       string   `json:"apiId,omitempty"`
	DreambornID string   `json:"dreambornId,omitempty"`
	Variants    []string `json:"variants,omitempty"`
}

// Set is a set definition loaded from the catalog.
type Set struct {
	Key                  string  `json:"setKey"`
	Kind                 SetKind `json:"kind"`
	Name                 string  `json:"name"`
	DisplayName          string  `json:"displayName,omitempty"`
	SetCode              string  `json:"setCode,omitempty"`
	Block                string  `json:"block,omitempty"`
	BlockCode            string  `json:"blockCode,omitempty"`
	Description          string  `json:"description,omitempty"`
	ReleaseDate          string  `json:"releaseDate,omitempty"`
	TotalCards           int     `json:"totalCards,omitempty"`
	MainSet              int     `json:"mainSet,omitempty"`
	HasFirstEdition      bool    `json:"hasFirstEditionVariant,omitempty"`
	SingleVariantOnly    bool    `json:"singleVariantOnly,omitempty"`
	HasPokeBallVariant   bool    `json:"hasPokeBallVariant,omitempty"`
	HasMasterBallVariant bool    `json:"hasMasterBallVariant,omitempty"`
	Cards                []Card  `json:"cards"`
}

// Scope returns the progress scope key for the set.
func (s *Set) Scope() string {
	if s.Kind == KindCustom {
		return CustomScopePrefix + s.Key
	}
	return s.Key
}

// Title returns the display name, falling back to the set name.
func (s *Set) Title() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Card looks up a card by its identifier.
func (s *Set) Card(number string) (Card, bool) {
	for _, c := range s.Cards {
		if c.Number == number {
			return c, true
		}
	}
	return Card{}, false
}

// Validate checks that the set can be tracked.
func (s *Set) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("set has no key")
	}
	switch s.Kind {
	case KindOfficial, KindCustom, KindLorcana:
	default:
		return fmt.Errorf("set %s has unknown kind %q", s.Key, s.Kind)
	}
	seen := make(map[string]bool, len(s.Cards))
	for i, c := range s.Cards {
		if strings.TrimSpace(c.Number) == "" {
			return fmt.Errorf("set %s card %d has no number", s.Key, i)
		}
		if seen[c.Number] {
			return fmt.Errorf("set %s has duplicate card %s", s.Key, c.Number)
		}
		seen[c.Number] = true
	}
	return nil
}

// PaddedNumber left-pads a numeric card identifier to three digits ("7" becomes "007").
// Non-numeric identifiers are returned unchanged.
func PaddedNumber(number string) string {
	if number == "" || len(number) >= 3 {
		return number
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return number
		}
	}
	return strings.Repeat("0", 3-len(number)) + number
}
