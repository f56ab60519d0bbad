// Package lookup is the client for the external entity search services:
// Wikidata entity search and Wikipedia full-text search.
//
// Every request is paced by a randomized cooldown and retried with
// exponential backoff on transient failures. Search never returns an error;
// a lookup that still fails after the retry ceiling degrades to no results
// and is not cached.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/observability"
	"github.com/otherjamesbrown/qidlink/pkg/querycache"
)

// Default endpoints.
const (
	DefaultEntityEndpoint   = "https://www.wikidata.org/w/api.php"
	DefaultFullTextEndpoint = "https://en.wikipedia.org/w/api.php"
	DefaultSPARQLEndpoint   = "https://query.wikidata.org/sparql"
	DefaultUserAgent        = "qidlink/1.0 (entity linking; https://github.com/otherjamesbrown/qidlink)"
)

// fullTextKeyPrefix namespaces full-text results when mode-aware keys are on.
const fullTextKeyPrefix = "WIKI:"

// Config configures a Client.
type Config struct {
	EntityEndpoint   string
	FullTextEndpoint string
	SPARQLEndpoint   string
	Language         string
	UserAgent        string
	// Token is an optional bearer token sent with every request.
	Token          string
	RequestTimeout time.Duration
	MinDelay       time.Duration
	MaxDelay       time.Duration
	Retry          RetryPolicy
	// ModeAwareCacheKeys stores full-text results under a separate key
	// instead of sharing the entity search entry for the same query.
	ModeAwareCacheKeys bool
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		EntityEndpoint:   DefaultEntityEndpoint,
		FullTextEndpoint: DefaultFullTextEndpoint,
		SPARQLEndpoint:   DefaultSPARQLEndpoint,
		Language:         "en",
		UserAgent:        DefaultUserAgent,
		RequestTimeout:   10 * time.Second,
		MinDelay:         1500 * time.Millisecond,
		MaxDelay:         3 * time.Second,
		Retry:            DefaultRetryPolicy(),
	}
}

// Client talks to the search services. It is safe for sequential use by a
// single run; the pacer assumes one outstanding request at a time.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *querycache.Cache
	pacer   *Pacer
	sleeper Sleeper
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	rnd     *rand.Rand
}

// Option configures optional Client collaborators.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleeper replaces the sleeper used for cooldowns and backoff.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithRand sets the random source for the cooldown jitter.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rnd = r }
}

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a lookup client. cache may be nil, in which case every
// Search goes to the network.
func NewClient(cfg Config, cache *querycache.Cache, logger logging.Logger, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.EntityEndpoint == "" {
		cfg.EntityEndpoint = def.EntityEndpoint
	}
	if cfg.FullTextEndpoint == "" {
		cfg.FullTextEndpoint = def.FullTextEndpoint
	}
	if cfg.SPARQLEndpoint == "" {
		cfg.SPARQLEndpoint = def.SPARQLEndpoint
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = def.Retry
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		cache:   cache,
		sleeper: RealSleeper,
		logger:  logger.With(logging.F("component", "lookup")),
		tracer:  observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pacer = NewPacer(cfg.MinDelay, cfg.MaxDelay, c.sleeper, c.rnd)
	return c
}

// CacheKey returns the cache key used for query in the given mode.
func (c *Client) CacheKey(query string, mode linking.Origin) string {
	if c.cfg.ModeAwareCacheKeys && mode == linking.OriginFullTextSearch {
		return fullTextKeyPrefix + query
	}
	return query
}

// Search returns up to linking.MaxResults results for query, serving from
// the cache when possible. Failures are logged and yield no results.
func (c *Client) Search(ctx context.Context, query string, mode linking.Origin) []linking.SearchResult {
	ctx, span := c.tracer.StartSearchSpan(ctx, query, string(mode))
	defer span.End()
	sh := observability.NewSpanHelper(span)

	key := c.CacheKey(query, mode)
	if c.cache != nil {
		if results, ok := c.cache.Get(key); ok {
			c.metrics.RecordCache(true)
			sh.SetSearchResult(true, len(results))
			return results
		}
		c.metrics.RecordCache(false)
	}

	var (
		results []linking.SearchResult
		err     error
	)
	switch mode {
	case linking.OriginFullTextSearch:
		results, err = c.FullTextResults(ctx, query)
	default:
		results, err = c.SearchEntities(ctx, query, c.cfg.Language)
	}
	if err != nil {
		le := qerrors.ClassifyError(err, string(mode))
		sh.SetError(err, string(le.Code), qerrors.IsRetryable(le.Code))
		c.logger.Warn("Lookup failed, continuing without results",
			logging.F("query", query),
			logging.F("mode", string(mode)),
			logging.F("code", string(le.Code)),
			logging.F("suggested_action", qerrors.GetSuggestedAction(le.Code)),
			logging.Err(err),
		)
		return nil
	}

	if len(results) > linking.MaxResults {
		results = results[:linking.MaxResults]
	}
	if c.cache != nil {
		c.cache.Put(key, results)
	}
	sh.SetSearchResult(false, len(results))
	return results
}

// getJSON performs a paced GET with retries and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, capability, endpoint string, params url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return qerrors.ClassifyError(err, capability)
		}

		err := c.do(ctx, capability, endpoint, params, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return qerrors.ClassifyError(ctx.Err(), capability)
		}

		le := qerrors.ClassifyError(err, capability)
		decision := c.cfg.Retry.DecideRetry(le, attempt)
		if !decision.ShouldRetry {
			return le
		}

		c.metrics.RecordRetry(capability, string(le.Code))
		c.logger.Debug("Retrying lookup",
			logging.F("capability", capability),
			logging.F("attempt", attempt+1),
			logging.F("code", string(le.Code)),
			logging.F("backoff", decision.BackoffDuration),
		)
		if err := c.sleeper.Sleep(ctx, decision.BackoffDuration); err != nil {
			return qerrors.ClassifyError(err, capability)
		}
	}
}

func (c *Client) do(ctx context.Context, capability, endpoint string, params url.Values, out any) error {
	ctx, span := c.tracer.StartRequestSpan(ctx, capability)
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", capability, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordLookup(capability, "error", time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &qerrors.LookupError{Code: qerrors.ErrTimeout, Stage: capability, Message: "request timed out", Cause: err}
		}
		return err
	}
	defer resp.Body.Close()
	c.metrics.RecordLookup(capability, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return qerrors.NewStatusError(capability, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return qerrors.NewMalformedError(capability, err)
	}
	return nil
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
