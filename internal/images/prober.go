package images

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
)

// Prober walks a candidate list and picks the first image that loads.
type Prober struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseDir     string
	placeholder string
}

// NewProber creates a Prober. Relative candidates are checked on disk under baseDir.
func NewProber(client *http.Client, limiter *rate.Limiter, baseDir, placeholder string) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if baseDir == "" {
		baseDir = "."
	}
	return &Prober{httpClient: client, limiter: limiter, baseDir: baseDir, placeholder: placeholder}
}

// First returns the first candidate that loads, or the placeholder when none do.
func (p *Prober) First(ctx context.Context, candidates []string) string {
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if p.Check(ctx, c) {
			return c
		}
	}
	return p.placeholder
}

// Check reports whether a single candidate loads.
func (p *Prober) Check(ctx context.Context, candidate string) bool {
	if !isRemote(candidate) {
		path := filepath.FromSlash(candidate)
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.baseDir, path)
		}
		info, err := os.Stat(path)
		return err == nil && !info.IsDir()
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return false
		}
	}

	status, err := p.request(ctx, http.MethodHead, candidate)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = p.request(ctx, http.MethodGet, candidate)
	}
	return err == nil && status >= 200 && status < 300
}

func (p *Prober) request(ctx context.Context, method, u string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func isRemote(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
