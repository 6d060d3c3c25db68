package catalog

import (
	"strings"

	"github.com/desertthunder/binder/internal/models"
)

// Variants returns the variants that must all be collected for card to count as complete.
//
// Lorcana cards track a single copy. Custom cards use their own variant list, falling back to a single copy.
// Official cards follow the set flags first and then the card's rarity.
func Variants(set *models.Set, card models.Card) []string {
	switch set.Kind {
	case models.KindLorcana:
		return []string{models.VariantSingle}
	case models.KindCustom:
		if len(card.Variants) > 0 {
			return append([]string(nil), card.Variants...)
		}
		return []string{models.VariantSingle}
	}

	if set.SingleVariantOnly {
		return []string{models.VariantSingle}
	}
	if set.HasFirstEdition {
		return []string{models.VariantFirstEdition, models.VariantUnlimited}
	}

	rarity := NormalizeRarity(card.Rarity)
	var variants []string
	switch {
	case strings.Contains(rarity, "holo"):
		variants = []string{models.VariantHolo, models.VariantReverseHolo}
	case rarity == "common" || rarity == "uncommon" || rarity == "rare":
		variants = []string{models.VariantNormal, models.VariantReverseHolo}
	default:
		return []string{models.VariantHolo}
	}

	if set.HasPokeBallVariant {
		variants = append(variants, models.VariantPokeBall)
	}
	if set.HasMasterBallVariant {
		variants = append(variants, models.VariantMasterBall)
	}
	return variants
}

// NormalizeRarity lowercases a rarity, treating a missing rarity as common.
func NormalizeRarity(rarity string) string {
	r := strings.ToLower(strings.TrimSpace(rarity))
	if r == "" {
		return "common"
	}
	return r
}
