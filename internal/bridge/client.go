package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

// ErrNotConnected is returned by [Client.Push] when no subscription is active.
var ErrNotConnected = errors.New("sync bridge is not connected")

// Status is the connection state shown to the user.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Synced
	Offline
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Synced:
		return "Synced"
	case Offline:
		return "Offline"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// SnapshotFunc receives every snapshot for the subscribed collection. empty is true when the collection has no
// data yet.
type SnapshotFunc func(p models.Progress, empty bool)

// ClientOpts configures a [Client].
type ClientOpts struct {
	// URL is the websocket endpoint, e.g. ws://127.0.0.1:7420/ws.
	URL         string
	Token       string
	DialTimeout time.Duration
	Logger      *log.Logger
	// OnStatus is called on every status change, outside any lock.
	OnStatus func(Status)
}

// Client keeps one live subscription to a collection on the sync mirror and pushes local changes to it.
type Client struct {
	wsURL    string
	restURL  string
	tokens   oauth2.TokenSource
	dialer   *websocket.Dialer
	logger   *log.Logger
	onStatus func(Status)

	mu     sync.Mutex
	sub    *subscription
	status Status
}

type subscription struct {
	conn    *websocket.Conn
	path    string
	writeMu sync.Mutex
	closed  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewClient creates a Client. It does not connect until [Client.Subscribe].
func NewClient(opts ClientOpts) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return nil, fmt.Errorf("%w: sync url must be ws:// or wss://, got %q", shared.ErrInvalidConfig, opts.URL)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}

	var tokens oauth2.TokenSource
	if opts.Token != "" {
		tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	}

	return &Client{
		wsURL:    u.String(),
		restURL:  restBase(u),
		tokens:   tokens,
		dialer:   &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: opts.DialTimeout},
		logger:   opts.Logger,
		onStatus: opts.OnStatus,
	}, nil
}

// restBase maps ws://host/ws to http://host.
func restBase(u *url.URL) string {
	r := *u
	if r.Scheme == "wss" {
		r.Scheme = "https"
	} else {
		r.Scheme = "http"
	}
	r.Path = strings.TrimSuffix(strings.TrimSuffix(r.Path, "/"), "/ws")
	r.RawQuery = ""
	return strings.TrimSuffix(r.String(), "/")
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()

	if changed && c.onStatus != nil {
		c.onStatus(s)
	}
}

func (c *Client) header() (http.Header, error) {
	h := http.Header{}
	if c.tokens == nil {
		return h, nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h, nil
}

// Subscribe detaches any previous subscription and attaches to collectionID. fn is called from a background
// goroutine for every snapshot until the subscription is replaced or closed, and never after Subscribe or
// [Client.Close] has returned for it.
//
// A dial failure leaves the client Offline and is returned so the caller can continue local-only.
func (c *Client) Subscribe(ctx context.Context, collectionID string, fn SnapshotFunc) error {
	if collectionID == "" {
		return fmt.Errorf("%w: collection id is required", shared.ErrMissingArgument)
	}
	c.detach()
	c.setStatus(Connecting)

	header, err := c.header()
	if err != nil {
		c.setStatus(Offline)
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		c.setStatus(Offline)
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: mirror rejected token", shared.ErrNotAuthenticated)
		}
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	sub := &subscription{
		conn:   conn,
		path:   DataPath(collectionID),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	if err := sub.write(Frame{Op: OpSubscribe, Path: sub.path}); err != nil {
		conn.Close()
		c.setStatus(Offline)
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go c.readLoop(sub, fn)
	c.setStatus(Synced)
	c.logger.Info("subscribed", "path", sub.path)
	return nil
}

func (c *Client) readLoop(sub *subscription, fn SnapshotFunc) {
	defer close(sub.done)

	for {
		var f Frame
		if err := sub.conn.ReadJSON(&f); err != nil {
			select {
			case <-sub.closed:
			default:
				c.logger.Warn("sync connection lost", "path", sub.path, "error", err)
				c.mu.Lock()
				current := c.sub == sub
				c.mu.Unlock()
				if current {
					c.setStatus(Offline)
				}
			}
			return
		}

		switch f.Op {
		case OpSnapshot:
			if f.Path != sub.path {
				continue
			}
			p, empty, err := DecodeSnapshot(f.Data)
			if err != nil {
				c.logger.Warn("ignoring malformed snapshot", "path", sub.path, "error", err)
				continue
			}
			select {
			case <-sub.closed:
				return
			default:
			}
			fn(p, empty)
		case OpError:
			c.logger.Warn("mirror error", "path", sub.path, "message", f.Message)
		}
	}
}

func (s *subscription) write(f Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(f)
}

// close tears the connection down and waits for the read loop to exit.
func (s *subscription) close() {
	s.once.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		s.conn.WriteJSON(Frame{Op: OpUnsubscribe, Path: s.path})
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
	<-s.done
}

func (c *Client) detach() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.close()
		c.logger.Debug("unsubscribed", "path", sub.path)
	}
}

// Push writes the whole progress tree to the subscribed collection. It does not wait for the echo.
func (c *Client) Push(ctx context.Context, p models.Progress) error {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		sub.conn.SetWriteDeadline(deadline)
		defer sub.conn.SetWriteDeadline(time.Time{})
	}
	if err := sub.conn.WriteJSON(Frame{Op: OpSet, Path: sub.path, Data: data}); err != nil {
		c.setStatus(Offline)
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}

// Fetch reads a collection's stored progress over HTTP without subscribing. empty is true when nothing is stored.
func (c *Client) Fetch(ctx context.Context, collectionID string) (p models.Progress, empty bool, err error) {
	if collectionID == "" {
		return nil, false, fmt.Errorf("%w: collection id is required", shared.ErrMissingArgument)
	}

	client := http.DefaultClient
	if c.tokens != nil {
		client = oauth2.NewClient(ctx, c.tokens)
	}

	endpoint := c.restURL + "/" + DataPath(url.PathEscape(collectionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.Progress{}, true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, fmt.Errorf("%w: mirror rejected token", shared.ErrNotAuthenticated)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, false, fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}
	return DecodeSnapshot(body)
}

// Close detaches the active subscription. The client can subscribe again afterwards.
func (c *Client) Close() error {
	c.detach()
	c.setStatus(Disconnected)
	return nil
}
