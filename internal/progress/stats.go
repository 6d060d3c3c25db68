package progress

import (
	"fmt"

	"github.com/desertthunder/binder/internal/models"
)

// CardVariants pairs a card identifier with the variants that apply to it.
type CardVariants struct {
	Card     string
	Variants []string
}

// Stats summarises progress over one scope.
type Stats struct {
	Scope          string `json:"scope"`
	Collected      int    `json:"collected"`
	Total          int    `json:"total"`
	CompleteCards  int    `json:"completeCards"`
	TotalCards     int    `json:"totalCards"`
	PercentDisplay string `json:"percent"`
}

// Percent returns collected over total as a percentage, 0 when there is nothing to collect.
func (s Stats) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Collected) / float64(s.Total) * 100
}

func (s Stats) String() string {
	return fmt.Sprintf("%d/%d (%s%%)", s.Collected, s.Total, s.PercentDisplay)
}

// Stats counts collected variants and complete cards for scope over the given cards.
func (s *Store) Stats(scope string, cards []CardVariants) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Scope: scope, TotalCards: len(cards)}
	for _, c := range cards {
		st.Total += len(c.Variants)
		for _, v := range c.Variants {
			if s.data.Get(scope, c.Card, v) {
				st.Collected++
			}
		}
		if complete(s.data, scope, c.Card, c.Variants) {
			st.CompleteCards++
		}
	}
	st.PercentDisplay = fmt.Sprintf("%.1f", st.Percent())
	return st
}

// Collected counts every true flag in p.
func Collected(p models.Progress) int {
	n := 0
	for _, cards := range p {
		for _, flags := range cards {
			for _, v := range flags {
				if v {
					n++
				}
			}
		}
	}
	return n
}
