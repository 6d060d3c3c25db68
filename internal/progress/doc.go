// Package progress owns the collection progress tree and the rules for changing it.
//
// A [Store] holds scope to card to variant flags in memory. A [Toggler] is the only writer during normal use: it
// flips one flag per request, asks for confirmation before unchecking a variant on a complete card, and then
// stores, persists and pushes each change in that order.
//
// Confirmations expire after [DefaultConfirmTimeout] unless configured otherwise. Expiry and an explicit "keep"
// both leave the store untouched and ask the caller to revert its display. A newer confirmation cancels an older
// one without a revert.
//
// [RunMigration] applies one-time rewrites such as [EditionMigration].
package progress
