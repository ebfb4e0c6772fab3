// Package fetch issues throttled streaming GET requests with fixed-backoff
// retries and mirror failover.
//
// A Fetch makes at most maxRetries+1 attempts. Before each attempt it honors
// cancellation and pause, then takes a per-origin permit from the throttler
// for the duration of the request. A 403 or 404 from a known mirror family
// triggers one mirror probe per fetch; timeouts and 429/5xx responses are
// retried after the retry interval, and so is everything else until the
// attempts run out.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/common"
	"github.com/dmitrijs2005/mediafetch/internal/control"
	"github.com/dmitrijs2005/mediafetch/internal/logging"
	"github.com/dmitrijs2005/mediafetch/internal/netx"
	"github.com/dmitrijs2005/mediafetch/internal/throttle"
)

type Options struct {
	Client        *http.Client
	Throttler     *throttle.Throttler
	Control       *control.Control
	Prober        *Prober
	RetryInterval time.Duration
	ReadTimeout   time.Duration
	Logger        logging.Logger
	OnStatus      StatusFunc
}

type Fetcher struct {
	client        *http.Client
	throttler     *throttle.Throttler
	ctl           *control.Control
	prober        *Prober
	retryInterval time.Duration
	readTimeout   time.Duration
	log           logging.Logger
	status        StatusFunc
}

func New(opts Options) *Fetcher {
	f := &Fetcher{
		client:        opts.Client,
		throttler:     opts.Throttler,
		ctl:           opts.Control,
		prober:        opts.Prober,
		retryInterval: opts.RetryInterval,
		readTimeout:   opts.ReadTimeout,
		log:           opts.Logger,
		status:        opts.OnStatus,
	}
	if f.client == nil {
		f.client = netx.NewClient(opts.ReadTimeout)
	}
	if f.ctl == nil {
		f.ctl = control.New()
	}
	if f.throttler == nil {
		f.throttler = throttle.New(1, 0)
	}
	if f.log == nil {
		f.log = logging.Discard()
	}
	if f.status == nil {
		f.status = func(string, string) {}
	}
	if f.prober == nil {
		f.prober = NewProber(f.client, DefaultFamilies, f.log, f.status)
	}
	return f
}

// Fetch performs a GET of rawURL with headers. On success the caller owns
// resp.Body, which fails with netx.ErrReadTimeout when the stream stalls.
// Cancellation yields common.ErrCancelled; exhaustion yields *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers http.Header, maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := Policy{MaxRetries: maxRetries}

	target := rawURL
	if alt, ok := f.prober.Cached(rawURL); ok {
		target = alt
	}

	probed := false
	var last error
	lastKind := KindNone
	attempts := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if f.ctl.Cancelled() {
			return nil, common.ErrCancelled
		}
		if err := f.ctl.Wait(ctx); err != nil {
			return nil, err
		}

		attempts++
		resp, kind, err := f.do(ctx, target, headers)
		if err == nil {
			return resp, nil
		}
		if f.ctl.Cancelled() {
			return nil, common.ErrCancelled
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		last, lastKind = err, kind

		action := policy.Decide(attempt, kind, !probed && f.prober.Eligible(target))
		if action == ActionFailover {
			probed = true
			f.status(rawURL, fmt.Sprintf("%s - probing subdomains", statusText(err)))
			pctx, pcancel := f.ctl.Bind(ctx)
			alt, ok := f.prober.Probe(pctx, rawURL, target)
			pcancel()
			if ok {
				target = alt
				attempts++
				resp, kind, err := f.do(ctx, target, headers)
				if err == nil {
					return resp, nil
				}
				if f.ctl.Cancelled() {
					return nil, common.ErrCancelled
				}
				last, lastKind = err, kind
			}
			action = policy.Decide(attempt, KindTransient, false)
		}

		if action == ActionFail {
			break
		}

		f.log.Warn(ctx, "Request failed, retrying",
			"url", target, "attempt", attempt+1, "of", maxRetries+1, "kind", lastKind.String(), "error", last)
		f.status(rawURL, fmt.Sprintf("attempt %d/%d failed: %s, retrying", attempt+1, maxRetries+1, statusText(last)))
		if err := f.ctl.Sleep(ctx, f.retryInterval); err != nil {
			return nil, err
		}
	}

	f.log.Error(ctx, "Request failed", "url", target, "attempts", attempts, "error", last)
	return nil, &Error{URL: rawURL, Attempts: attempts, Kind: lastKind, Err: last}
}

// do performs one throttled request.
func (f *Fetcher) do(ctx context.Context, target string, headers http.Header) (*http.Response, ErrorKind, error) {
	origin, err := throttle.Origin(target)
	if err != nil {
		return nil, KindStatus, err
	}

	reqCtx, cancel := f.ctl.Bind(ctx)

	if err := f.throttler.Acquire(reqCtx, origin); err != nil {
		cancel()
		return nil, KindNetwork, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		f.throttler.Release(origin)
		cancel()
		return nil, KindStatus, err
	}
	for k, v := range headers {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := f.client.Do(req)
	f.throttler.Release(origin)
	if err != nil {
		cancel()
		return nil, ClassifyError(err), err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		_ = resp.Body.Close()
		cancel()
		se := &StatusError{Code: resp.StatusCode}
		return nil, ClassifyStatus(resp.StatusCode), se
	}

	resp.Body = netx.NewIdleTimeoutBody(resp.Body, f.readTimeout, cancel)
	return resp, KindNone, nil
}

func statusText(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%d", se.Code)
	}
	if netx.IsTimeout(err) {
		return "timeout"
	}
	return "error"
}
