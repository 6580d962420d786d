// Package github looks up author profiles on the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/vicinaehq/backend/internal/storesrv/config"
)

const (
	DefaultAPIURL = "https://api.github.com"
	UserAgent     = "Vicinae-Extension-Store"

	acceptHeader = "application/vnd.github.v3+json"
	maxBodySize  = 1 << 20
)

var (
	ErrUpstream    = errors.New("github api error")
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrUpstream)
	ErrUnavailable = fmt.Errorf("%w: unavailable", ErrUpstream)
)

// User is the subset of a GitHub profile the store uses.
type User struct {
	Login     string  `json:"login"`
	Name      *string `json:"name"`
	AvatarURL string  `json:"avatar_url"`
	HTMLURL   string  `json:"html_url"`
}

type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	attempts   uint
	delay      time.Duration
	breaker    *circuit.Breaker
	stop       chan struct{}
}

type Option func(*Client)

// WithHTTPClient replaces the DNS caching client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry sets the number of attempts for transient failures and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

func NewClient(cfg config.GitHubConfig, opts ...Option) *Client {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	// Trips after 5 consecutive failures
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	c := &Client{
		apiURL:   apiURL,
		token:    cfg.Token,
		attempts: 3,
		delay:    200 * time.Millisecond,
		breaker: circuit.NewBreakerWithOptions(&circuit.Options{
			BackOff:    expBackoff,
			ShouldTrip: circuit.ThresholdTripFunc(5),
		}),
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = c.newCachingClient(cfg.RequestTimeout())
	}
	return c
}

func (c *Client) newCachingClient(timeout time.Duration) *http.Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-c.stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// Close stops the DNS refresh loop.
func (c *Client) Close() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

// FetchUser returns the profile of handle, or nil without error when GitHub has no such user.
func (c *Client) FetchUser(ctx context.Context, handle string) (*User, error) {
	if !c.breaker.Ready() {
		return nil, ErrUnavailable
	}

	var user *User
	err := c.breaker.Call(func() error {
		return retry.Do(func() error {
			var err error
			user, err = c.fetchUser(ctx, handle)
			return err
		},
			retry.Context(ctx),
			retry.Attempts(c.attempts),
			retry.Delay(c.delay),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(isTransient),
			retry.LastErrorOnly(true),
		)
	}, 0)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) fetchUser(ctx context.Context, handle string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/users/"+url.PathEscape(handle), nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", UserAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var u User
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&u); err != nil {
			return nil, fmt.Errorf("%w: decoding profile: %v", ErrUpstream, err)
		}
		return &u, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"):
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
}

func isTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

// DisplayName resolves the name shown for an author: the profile name, then the login,
// then the handle itself. Lookup failures are logged and never returned.
func (c *Client) DisplayName(ctx context.Context, handle string) string {
	u, err := c.FetchUser(ctx, handle)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("handle", handle).Msg("github profile lookup failed")
		return handle
	}
	if u == nil {
		return handle
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		return *u.Name
	}
	if u.Login != "" {
		return u.Login
	}
	return handle
}

// AvatarURL is the public avatar of a GitHub handle.
func AvatarURL(handle string) string {
	return "https://avatars.githubusercontent.com/" + handle
}

// ProfileURL is the public profile page of a GitHub handle.
func ProfileURL(handle string) string {
	return "https://github.com/" + handle
}
