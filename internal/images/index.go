package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/binder/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultIndexURL is the public card index used for Lorcana image lookups.
const DefaultIndexURL = "https://api.lorcast.com"

// IndexClient fetches per-set card image URLs from the card index service.
type IndexClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewIndexClient creates an IndexClient. A nil limiter disables rate limiting.
func NewIndexClient(baseURL string, client *http.Client, limiter *rate.Limiter) *IndexClient {
	if baseURL == "" {
		baseURL = DefaultIndexURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &IndexClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
		limiter:    limiter,
	}
}

type indexCard struct {
	CollectorNumber json.RawMessage `json:"collector_number"`
	ImageURIs       struct {
		Digital struct {
			Small  string `json:"small"`
			Normal string `json:"normal"`
			Large  string `json:"large"`
		} `json:"digital"`
	} `json:"image_uris"`
}

// SetImages returns card number to image URL for the set with the given index code.
//
// The response may be an object with a "results" array or a bare array. Cards without a positive collector number
// or without any digital image are skipped. The preferred size is normal, then large, then small.
func (c *IndexClient) SetImages(ctx context.Context, code string) (map[string]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/v0/sets/%s/cards", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, endpoint, resp.StatusCode)
	}

	cards, err := decodeIndexCards(body)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(cards))
	for _, card := range cards {
		num := collectorNumber(card.CollectorNumber)
		if num <= 0 {
			continue
		}
		d := card.ImageURIs.Digital
		u := firstNonEmpty(d.Normal, d.Large, d.Small)
		if u == "" {
			continue
		}
		out[strconv.Itoa(num)] = u
	}
	return out, nil
}

func decodeIndexCards(body []byte) ([]indexCard, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var cards []indexCard
		if err := json.Unmarshal(body, &cards); err != nil {
			return nil, fmt.Errorf("%w: failed to decode card list: %v", shared.ErrAPIRequest, err)
		}
		return cards, nil
	}

	var wrapped struct {
		Results []indexCard `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: failed to decode card list: %v", shared.ErrAPIRequest, err)
	}
	return wrapped.Results, nil
}

// collectorNumber reads the leading integer of a collector number given as a JSON string or number.
func collectorNumber(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0
		}
		return int(f)
	}
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
