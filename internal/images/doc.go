// Package images resolves card image candidates.
//
// Lorcana cards get up to three tiers of candidates: the Dreamborn CDN, a per-set lookup fetched once from the
// card index service, and local files padded to three digits. Pokémon cards with an api id map to a single
// hosted image. The [Resolver] never fails; missing data only shortens the candidate list.
//
// A [Prober] picks the first candidate that actually loads.
package images
