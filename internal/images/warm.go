package images

import (
	"context"
	"fmt"
	"sync"
)

// WarmUpdate reports progress while warming index lookups.
type WarmUpdate struct {
	Scope   string
	Step    int
	Total   int
	Cards   int
	Message string
}

// Warm fetches the index lookup for every scope using a small worker pool and returns the number of cards cached
// per scope. Progress is sent on prog without blocking. prog may be nil.
func (r *Resolver) Warm(ctx context.Context, prog chan<- WarmUpdate, scopes []string, workers int) map[string]int {
	if workers <= 0 {
		workers = 3
	}
	if workers > len(scopes) {
		workers = len(scopes)
	}

	type result struct {
		scope string
		cards int
	}

	jobs := make(chan string, len(scopes))
	results := make(chan result, len(scopes))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scope := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- result{scope: scope, cards: len(r.Lookup(ctx, scope))}
			}
		}()
	}

	for _, scope := range scopes {
		jobs <- scope
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	counts := make(map[string]int, len(scopes))
	step := 0
	for res := range results {
		step++
		counts[res.scope] = res.cards
		sendWarmUpdate(prog, WarmUpdate{
			Scope:   res.scope,
			Step:    step,
			Total:   len(scopes),
			Cards:   res.cards,
			Message: fmt.Sprintf("[%d/%d] %s: %d images", step, len(scopes), res.scope, res.cards),
		})
	}
	return counts
}

func sendWarmUpdate(prog chan<- WarmUpdate, u WarmUpdate) {
	if prog == nil {
		return
	}
	select {
	case prog <- u:
	default:
	}
}
