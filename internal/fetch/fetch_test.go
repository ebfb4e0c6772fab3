package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/control"
	"github.com/dmitrijs2005/mediafetch/internal/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routedClient sends every request to srv regardless of host, so mirror
// hosts like n3.coomer.st can be served locally.
func routedClient(srv *httptest.Server) *http.Client {
	addr := srv.Listener.Addr().String()
	d := &net.Dialer{}
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return d.DialContext(ctx, network, addr)
		},
	}}
}

type statusLog struct {
	mu    sync.Mutex
	lines []string
}

func (s *statusLog) add(_, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *statusLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func newFetcher(client *http.Client, ctl *control.Control, status StatusFunc) *Fetcher {
	return New(Options{
		Client:        client,
		Throttler:     throttle.New(4, 0),
		Control:       ctl,
		RetryInterval: 5 * time.Millisecond,
		ReadTimeout:   time.Second,
		OnStatus:      status,
	})
}

func TestFetch_RateLimitedExhaustsExactlyMaxPlusOne(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newFetcher(srv.Client(), control.New(), nil)
	resp, err := f.Fetch(context.Background(), srv.URL+"/a.jpg", nil, 3)

	require.Nil(t, resp)
	require.ErrorIs(t, err, common.ErrFetchFailed)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 429, fe.StatusCode())
	assert.Equal(t, 4, fe.Attempts)
	assert.EqualValues(t, 4, calls.Load())
}

func TestFetch_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var st statusLog
	f := newFetcher(srv.Client(), control.New(), st.add)
	start := time.Now()
	resp, err := f.Fetch(context.Background(), srv.URL+"/a.jpg", nil, 3)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(b))
	assert.EqualValues(t, 3, calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "two retry sleeps")
	assert.Equal(t, []string{
		"attempt 1/4 failed: 503, retrying",
		"attempt 2/4 failed: 503, retrying",
	}, st.all())
}

func TestFetch_ForwardsHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Range", "bytes=100-")
	resp, err := newFetcher(srv.Client(), control.New(), nil).Fetch(context.Background(), srv.URL+"/v.mp4", h, 0)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "bytes=100-", got)
}

func TestFetch_CancelledMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ctl := control.New()
	ctl.Cancel()
	_, err := newFetcher(srv.Client(), ctl, nil).Fetch(context.Background(), srv.URL+"/a", nil, 5)
	require.ErrorIs(t, err, common.ErrCancelled)
	assert.Zero(t, calls.Load())
}

func TestFetch_CancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctl := control.New()
	f := New(Options{Client: srv.Client(), Control: ctl, RetryInterval: time.Hour})
	go func() {
		time.Sleep(20 * time.Millisecond)
		ctl.Cancel()
	}()
	_, err := f.Fetch(context.Background(), srv.URL+"/a", nil, 3)
	require.ErrorIs(t, err, common.ErrCancelled)
}

func TestFetch_NotFoundOutsideFamilyIsRetriedWithoutProbe(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var st statusLog
	_, err := newFetcher(srv.Client(), control.New(), st.add).Fetch(context.Background(), srv.URL+"/a", nil, 2)
	require.ErrorIs(t, err, common.ErrFetchFailed)
	assert.EqualValues(t, 3, calls.Load())
	for _, l := range st.all() {
		assert.NotContains(t, l, "subdomain")
	}
}

func TestFetch_FailoverFindsMirrorAndCachesIt(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.Host]++
		mu.Unlock()
		if r.Host == "n3.coomer.st" && strings.HasPrefix(r.URL.Path, "/data/ab/cd/") {
			_, _ = w.Write([]byte("mirror"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var st statusLog
	f := newFetcher(routedClient(srv), control.New(), st.add)

	resp, err := f.Fetch(context.Background(), "http://coomer.st/ab/cd/file.jpg", nil, 2)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "mirror", string(b))
	assert.Equal(t, "http://n3.coomer.st/data/ab/cd/file.jpg", resp.Request.URL.String())

	lines := st.all()
	assert.Contains(t, lines, "404 - probing subdomains")
	assert.Contains(t, lines, "Testing subdomain: n1.coomer.st")
	assert.Contains(t, lines, "Subdomain found: n3.coomer.st")

	resp, err = f.Fetch(context.Background(), "http://coomer.st/ab/cd/file.jpg?f=x.jpg", nil, 2)
	require.NoError(t, err)
	_ = resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["coomer.st"], "cached mirror skips the origin")
	assert.Equal(t, 1, hits["n1.coomer.st"], "no second probe")
}

func TestFetch_FailoverExhaustedFallsBackToRetries(t *testing.T) {
	var origin atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host == "kemono.su" {
			origin.Add(1)
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var st statusLog
	f := newFetcher(routedClient(srv), control.New(), st.add)
	_, err := f.Fetch(context.Background(), "http://kemono.su/data/x/y.png", nil, 2)
	require.ErrorIs(t, err, common.ErrFetchFailed)

	assert.EqualValues(t, 3, origin.Load())
	lines := st.all()
	assert.Contains(t, lines, "Exhausted subdomains")
	assert.Contains(t, lines, "Testing subdomain: n10.kemono.su")

	probes := 0
	for _, l := range lines {
		if l == "403 - probing subdomains" {
			probes++
		}
	}
	assert.Equal(t, 1, probes, "probe at most once per fetch")
}

func TestProber_Candidates(t *testing.T) {
	p := NewProber(http.DefaultClient, DefaultFamilies, nil, nil)

	u := mustParse(t, "https://kemono.su/aa/bb/c.zip")
	c := p.Candidates(u)
	require.Len(t, c, 20)
	assert.Equal(t, "https://n1.kemono.cr/data/aa/bb/c.zip", c[0])
	assert.Equal(t, "https://n10.kemono.cr/data/aa/bb/c.zip", c[9])
	assert.Equal(t, "https://n1.kemono.su/data/aa/bb/c.zip", c[10])

	u = mustParse(t, "https://coomer.st/data/aa/c.mp4")
	c = p.Candidates(u)
	require.Len(t, c, 10)
	assert.Equal(t, "https://n1.coomer.st/data/aa/c.mp4", c[0], "prefix not doubled")

	assert.Nil(t, p.Candidates(mustParse(t, "https://example.org/a")))
	assert.True(t, p.Eligible("https://n4.coomer.st/data/a"))
	assert.False(t, p.Eligible("https://example.org/a"))
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
