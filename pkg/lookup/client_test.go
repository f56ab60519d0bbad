package lookup

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
	"github.com/otherjamesbrown/qidlink/pkg/querycache"
)

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) (*Client, *querycache.Cache, *recordingSleeper) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.EntityEndpoint = srv.URL + "/wikidata"
	cfg.FullTextEndpoint = srv.URL + "/wikipedia"
	cfg.SPARQLEndpoint = srv.URL + "/sparql"
	cfg.MinDelay = 0
	cfg.MaxDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}

	cache := querycache.New(querycache.NewMemoryStore(nil), logging.NewNopLogger())
	sleeper := &recordingSleeper{}
	c := NewClient(cfg, cache, logging.NewNopLogger(), WithSleeper(sleeper))
	return c, cache, sleeper
}

const entityBody = `{"search":[
	{"id":"Q5592","label":"Michelangelo","description":"Italian sculptor, painter, architect and poet"},
	{"id":"Q170000","label":"Michelangelo","description":"given name"}
]}`

func TestSearch_EntitySearch(t *testing.T) {
	var gotQuery, gotUA string
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search")
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "wbsearchentities", r.URL.Query().Get("action"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprint(w, entityBody)
	}, nil)

	results := c.Search(context.Background(), "Michelangelo", linking.OriginEntitySearch)
	require.Len(t, results, 2)
	assert.Equal(t, "Q5592", results[0].Identifier)
	assert.Equal(t, "Italian sculptor, painter, architect and poet", results[0].Description)
	assert.Equal(t, linking.OriginEntitySearch, results[0].Origin)
	assert.Equal(t, "Michelangelo", gotQuery)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestSearch_SecondCallIsServedFromCache(t *testing.T) {
	var calls int32
	c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, entityBody)
	}, nil)

	first := c.Search(context.Background(), "Michelangelo", linking.OriginEntitySearch)
	second := c.Search(context.Background(), "Michelangelo", linking.OriginEntitySearch)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, cache.Stats().Hits)
}

func TestSearch_EmptyResultIsCached(t *testing.T) {
	var calls int32
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"search":[]}`)
	}, nil)

	assert.Empty(t, c.Search(context.Background(), "zzzz", linking.OriginEntitySearch))
	assert.Empty(t, c.Search(context.Background(), "zzzz", linking.OriginEntitySearch))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_CapsResults(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search":[
			{"id":"Q1","label":"a"},{"id":"Q2","label":"b"},{"id":"Q3","label":"c"},
			{"id":"Q4","label":"d"},{"id":"Q5","label":"e"},{"id":"Q6","label":"f"},{"id":"Q7","label":"g"}]}`)
	}, nil)

	results := c.Search(context.Background(), "x", linking.OriginEntitySearch)
	assert.Len(t, results, linking.MaxResults)
	assert.Equal(t, "Q1", results[0].Identifier)
}

func TestSearch_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls int32
	c, _, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, entityBody)
	}, nil)

	results := c.Search(context.Background(), "Michelangelo", linking.OriginEntitySearch)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// cooldown before each request plus backoff after each failure
	assert.Equal(t, []time.Duration{0, 1 * time.Second, 0, 2 * time.Second, 0}, sleeper.Waits())
}

func TestSearch_FailureDegradesToEmptyAndIsNotCached(t *testing.T) {
	var calls int32
	c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	results := c.Search(context.Background(), "Michelangelo", linking.OriginEntitySearch)
	assert.Empty(t, results)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "one attempt plus three retries")

	_, ok := cache.Get("Michelangelo")
	assert.False(t, ok)
}

func TestSearch_MalformedPayloadIsRetried(t *testing.T) {
	var calls int32
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `{"search":[`)
			return
		}
		fmt.Fprint(w, entityBody)
	}, nil)

	assert.Len(t, c.Search(context.Background(), "Michelangelo", linking.OriginEntitySearch), 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSearch_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}, nil)

	assert.Empty(t, c.Search(context.Background(), "x", linking.OriginEntitySearch))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_RateLimitHonorsRetryAfter(t *testing.T) {
	var calls int32
	c, _, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, entityBody)
	}, nil)

	assert.Len(t, c.Search(context.Background(), "x", linking.OriginEntitySearch), 2)
	assert.Contains(t, sleeper.Waits(), 7*time.Second)
}

func TestSearch_RateLimitWithoutHeaderBacksOffExponentially(t *testing.T) {
	var calls int32
	c, _, sleeper := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, entityBody)
	}, nil)

	assert.Len(t, c.Search(context.Background(), "x", linking.OriginEntitySearch), 2)
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 0, 10 * time.Second, 0}, sleeper.Waits())
}

func TestSearch_CancelledContextReturnsEmpty(t *testing.T) {
	var calls int32
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, entityBody)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, c.Search(ctx, "x", linking.OriginEntitySearch))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSearch_BearerToken(t *testing.T) {
	var auth string
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprint(w, entityBody)
	}, func(cfg *Config) { cfg.Token = "secret" })

	c.Search(context.Background(), "x", linking.OriginEntitySearch)
	assert.Equal(t, "Bearer secret", auth)
}

func TestCacheKey(t *testing.T) {
	c := NewClient(DefaultConfig(), nil, nil)
	assert.Equal(t, "Rome", c.CacheKey("Rome", linking.OriginEntitySearch))
	assert.Equal(t, "Rome", c.CacheKey("Rome", linking.OriginFullTextSearch))

	cfg := DefaultConfig()
	cfg.ModeAwareCacheKeys = true
	c = NewClient(cfg, nil, nil)
	assert.Equal(t, "Rome", c.CacheKey("Rome", linking.OriginEntitySearch))
	assert.Equal(t, "WIKI:Rome", c.CacheKey("Rome", linking.OriginFullTextSearch))
}

func TestPacer_DelayWithinBounds(t *testing.T) {
	p := NewPacer(1500*time.Millisecond, 3*time.Second, nil, rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 100; i++ {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 1500*time.Millisecond)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestPacer_WaitUsesSleeper(t *testing.T) {
	s := &recordingSleeper{}
	p := NewPacer(time.Second, time.Second, s, nil)
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, []time.Duration{time.Second}, s.Waits())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter("Mon, 01 Jan 2024 12:01:30 GMT", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage", now))
}
