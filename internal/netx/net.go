// Package netx holds HTTP plumbing for streaming downloads.
package netx

import (
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ErrReadTimeout is returned by a body that saw no data for its idle timeout.
var ErrReadTimeout = errors.New("read timeout")

// NewClient returns a client for long streaming transfers. There is no
// overall request timeout; readTimeout bounds connecting and waiting for
// response headers, and IdleTimeoutBody bounds each body read.
func NewClient(readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: readTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: readTimeout,
		},
	}
}

// IdleTimeoutBody aborts a response body when a single Read does not
// complete within the timeout. The timer runs only while a Read is in
// progress, so time spent between reads is not counted. abort must cancel
// the request context.
type IdleTimeoutBody struct {
	body     io.ReadCloser
	timeout  time.Duration
	timer    *time.Timer
	abort    func()
	timedOut atomic.Bool
	once     sync.Once
}

func NewIdleTimeoutBody(body io.ReadCloser, timeout time.Duration, abort func()) *IdleTimeoutBody {
	b := &IdleTimeoutBody{body: body, timeout: timeout, abort: abort}
	if timeout > 0 {
		b.timer = time.AfterFunc(timeout, func() {
			b.timedOut.Store(true)
			abort()
		})
		b.timer.Stop()
	}
	return b
}

func (b *IdleTimeoutBody) Read(p []byte) (int, error) {
	if b.timedOut.Load() {
		return 0, ErrReadTimeout
	}
	if b.timer != nil {
		b.timer.Reset(b.timeout)
	}
	n, err := b.body.Read(p)
	if b.timer != nil {
		b.timer.Stop()
	}
	if b.timedOut.Load() {
		return n, ErrReadTimeout
	}
	return n, err
}

func (b *IdleTimeoutBody) Close() error {
	var err error
	b.once.Do(func() {
		if b.timer != nil {
			b.timer.Stop()
		}
		err = b.body.Close()
		b.abort()
	})
	return err
}

var contentRangeTotal = regexp.MustCompile(`/(\d+)\s*$`)

// ParseContentRange extracts the complete length from a Content-Range
// header such as "bytes 100-199/1000". It reports false for "*" or a
// missing header.
func ParseContentRange(h string) (int64, bool) {
	m := contentRangeTotal.FindStringSubmatch(h)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseContentLength returns the Content-Length of resp, or false when unknown.
func ParseContentLength(resp *http.Response) (int64, bool) {
	if resp.ContentLength >= 0 {
		return resp.ContentLength, true
	}
	v := resp.Header.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsTimeout reports whether err is a network or read timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrReadTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
