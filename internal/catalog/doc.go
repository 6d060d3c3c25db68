// Package catalog loads the read-only set definitions and answers questions about them.
//
// Set files live under a data directory:
//
//	pokemon/official-sets/{key}.json
//	pokemon/custom-sets/{key}.json
//	lorcana/sets/{key}.json
//
// Each file holds set metadata and a "cards" object keyed by card number. [Variants] decides which variants a
// card needs for completion and [Filter] narrows a card list for display.
package catalog
