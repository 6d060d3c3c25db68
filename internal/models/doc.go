// Package models defines the domain types for the collection tracker.
//
// The package contains two groups of types:
//
// 1. Progress: the persisted and synced collection state
//   - [Progress] : scope key to card identifier to variant flags
//   - [CardProgress] : the cards recorded under one scope
//   - [VariantFlags] : collected state of each variant of one card
//
// 2. Catalog: read-only set definitions loaded from disk
//   - [Set] : an official, custom or Lorcana set and its card list
//   - [Card] : a card with the identifiers used for image lookup
//
// Progress is a plain map value. Concurrency control lives with its owner, the progress store.
package models
