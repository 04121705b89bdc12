package crcon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "hllstatus/pkg/logx"
)

const (
	APIPrefix     = "/api/"
	SessionCookie = "sessionid"

	EndpointLogin     = "login"
	EndpointStatus    = "get_status"
	EndpointGamestate = "get_gamestate"
	EndpointSlots     = "get_slots"
	EndpointRotation  = "get_map_rotation"
	EndpointVIPSlots  = "get_vip_slots_num"
	EndpointVIPCount  = "get_vips_count"

	maxBodyBytes = 4 << 20
)

// Caller performs one logical control API call including login and retries.
type Caller interface {
	Call(ctx context.Context, s *Session, endpoint string, params any) (json.RawMessage, error)
}

type Config struct {
	// Attempts is the per-call retry budget (default 5).
	Attempts int
	// RetryDelay is the wait before the second attempt; it doubles up to
	// MaxRetryDelay. Zero retries immediately.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// RatePerSec paces requests to the server (0 disables pacing).
	RatePerSec float64
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = 5
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 10 * time.Second
	}
	return c
}

// Client talks to one server's control API over a shared *http.Client.
type Client struct {
	http    *http.Client
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter
}

func NewClient(hc *http.Client, cfg Config, log logx.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	c := &Client{http: hc, cfg: cfg, log: log}
	if cfg.RatePerSec > 0 {
		burst := max(1, int(cfg.RatePerSec))
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c
}

// Call posts to endpoint and returns the envelope's result. A missing token
// triggers a login first. Failed attempts are classified and retried up to
// the configured budget, after which ErrNoResult is returned wrapping the
// last failure.
func (c *Client) Call(ctx context.Context, s *Session, endpoint string, params any) (json.RawMessage, error) {
	var last error
	delay := c.cfg.RetryDelay

	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, used, err := c.attempt(ctx, s, endpoint, params)
		if err == nil {
			return result, nil
		}
		last = err

		d := classify(err)
		if d.clearToken && s.invalidate(used) {
			c.log.Info("control api token cleared", logx.String("endpoint", endpoint))
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if !d.retry {
			return nil, err
		}

		c.log.Warn("control api call failed",
			logx.String("endpoint", endpoint),
			logx.Int("attempt", attempt),
			logx.Int("attempts", c.cfg.Attempts),
			logx.Err(err),
		)

		if attempt < c.cfg.Attempts && delay > 0 {
			if err := sleepCtx(ctx, jitter(delay)); err != nil {
				return nil, err
			}
			delay = min(delay*2, c.cfg.MaxRetryDelay)
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrNoResult, endpoint, c.cfg.Attempts, last)
}

// attempt performs a single request. It returns the token that was sent so
// an auth failure clears exactly that token.
func (c *Client) attempt(ctx context.Context, s *Session, endpoint string, params any) (json.RawMessage, string, error) {
	token := s.Token()
	if token == "" {
		var err error
		if token, err = c.Login(ctx, s); err != nil {
			return nil, "", err
		}
	}

	resp, err := c.post(ctx, s.endpointURL(endpoint), params, token)
	if err != nil {
		return nil, token, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, token, fmt.Errorf("%s: read body: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, token, &AuthError{Endpoint: endpoint, Status: resp.StatusCode, Reason: "token rejected"}
	case resp.StatusCode/100 != 2:
		return nil, token, &HTTPError{Endpoint: endpoint, Status: resp.StatusCode, Body: clip(body)}
	}

	var env struct {
		Result json.RawMessage `json:"result"`
		Failed bool            `json:"failed"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, token, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, err)
	}
	if len(env.Result) == 0 || bytes.Equal(env.Result, []byte("null")) {
		if env.Error != "" {
			return nil, token, fmt.Errorf("%w: %s: %s", ErrEmptyResult, endpoint, env.Error)
		}
		return nil, token, fmt.Errorf("%w: %s", ErrEmptyResult, endpoint)
	}
	return env.Result, token, nil
}

// Login exchanges the session credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, s *Session) (string, error) {
	if strings.TrimSpace(s.Username) == "" || s.Password == "" {
		return "", ErrEmptyCredentials
	}

	resp, err := c.post(ctx, s.endpointURL(EndpointLogin), map[string]string{
		"username": s.Username,
		"password": s.Password,
	}, "")
	if err != nil {
		return "", fmt.Errorf("%s: %w", EndpointLogin, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode/100 != 2 {
		return "", &AuthError{Endpoint: EndpointLogin, Status: resp.StatusCode, Reason: "credentials rejected"}
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookie && ck.Value != "" {
			s.setToken(ck.Value)
			c.log.Debug("control api login ok", logx.String("server", s.Server))
			return ck.Value, nil
		}
	}
	return "", &AuthError{Endpoint: EndpointLogin, Status: resp.StatusCode, Reason: "no " + SessionCookie + " cookie in response"}
}

func (c *Client) post(ctx context.Context, url string, params any, token string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader = http.NoBody
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	return c.http.Do(req)
}

func jitter(d time.Duration) time.Duration {
	// 20% jitter.
	j := time.Duration(float64(d) * 0.2)
	if j <= 0 {
		return d
	}
	return d - j + time.Duration(rand.Int63n(int64(2*j)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
