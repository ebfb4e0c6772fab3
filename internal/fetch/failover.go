package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/dmitrijs2005/mediafetch/internal/logging"
)

// Family is a group of mirror hosts serving the same content. A URL belongs
// to the family when its host contains Match.
type Family struct {
	Match   string
	Domains []string
}

// DefaultFamilies are the mirror families probed on 403/404.
var DefaultFamilies = []Family{
	{Match: "coomer", Domains: []string{"coomer.st"}},
	{Match: "kemono", Domains: []string{"kemono.cr", "kemono.su"}},
}

const (
	// Mirrors is the number of numbered mirrors (n1..nN) per domain.
	Mirrors = 10
	// DataPrefix is the path prefix mirrors serve files under.
	DataPrefix = "/data"
)

// StatusFunc receives short human-readable status lines for an item.
type StatusFunc func(itemURL, status string)

// Prober finds a working mirror for a path and caches the answer for the
// lifetime of the engine.
type Prober struct {
	client   *http.Client
	families []Family
	mirrors  int
	log      logging.Logger
	status   StatusFunc

	mu    sync.Mutex
	cache map[string]string
	locks map[string]*sync.Mutex
}

func NewProber(client *http.Client, families []Family, log logging.Logger, status StatusFunc) *Prober {
	if status == nil {
		status = func(string, string) {}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Prober{
		client:   client,
		families: families,
		mirrors:  Mirrors,
		log:      log,
		status:   status,
		cache:    make(map[string]string),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (p *Prober) family(host string) (Family, bool) {
	host = strings.ToLower(host)
	for _, f := range p.families {
		if strings.Contains(host, f.Match) {
			return f, true
		}
	}
	return Family{}, false
}

// Eligible reports whether rawURL belongs to a mirror family.
func (p *Prober) Eligible(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := p.family(u.Hostname())
	return ok
}

// mirrorPath ensures the path carries the /data prefix.
func mirrorPath(path string) string {
	if strings.HasPrefix(path, DataPrefix+"/") || path == DataPrefix {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return DataPrefix + path
}

// Candidates lists mirror URLs for u in probe order: n1..nN of each domain.
func (p *Prober) Candidates(u *url.URL) []string {
	f, ok := p.family(u.Hostname())
	if !ok {
		return nil
	}
	out := make([]string, 0, len(f.Domains)*p.mirrors)
	for _, d := range f.Domains {
		for i := 1; i <= p.mirrors; i++ {
			c := *u
			c.Host = fmt.Sprintf("n%d.%s", i, d)
			c.Path = mirrorPath(u.Path)
			c.RawPath = ""
			out = append(out, c.String())
		}
	}
	return out
}

// Cached returns the mirror URL for rawURL when its path was resolved before.
func (p *Prober) Cached(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	p.mu.Lock()
	origin, ok := p.cache[u.Path]
	p.mu.Unlock()
	if !ok {
		return "", false
	}
	return rewrite(u, origin)
}

func rewrite(u *url.URL, origin string) (string, bool) {
	o, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	c := *u
	c.Scheme = o.Scheme
	c.Host = o.Host
	c.Path = mirrorPath(u.Path)
	c.RawPath = ""
	return c.String(), true
}

func (p *Prober) pathLock(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	return l
}

// Probe tries each candidate mirror for rawURL, skipping failed, and returns
// the first that answers 200. Concurrent probes for one path are serialized
// so a later caller reuses the earlier answer.
func (p *Prober) Probe(ctx context.Context, rawURL, failed string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if _, ok := p.family(u.Hostname()); !ok {
		return "", false
	}

	l := p.pathLock(u.Path)
	l.Lock()
	defer l.Unlock()

	if alt, ok := p.Cached(rawURL); ok && alt != failed {
		return alt, true
	}

	for _, cand := range p.Candidates(u) {
		if ctx.Err() != nil {
			return "", false
		}
		if cand == failed {
			continue
		}
		cu, _ := url.Parse(cand)
		p.status(rawURL, "Testing subdomain: "+cu.Host)
		if !p.check(ctx, cand) {
			continue
		}
		p.mu.Lock()
		p.cache[u.Path] = cu.Scheme + "://" + cu.Host
		p.mu.Unlock()
		p.status(rawURL, "Subdomain found: "+cu.Host)
		p.log.Info(ctx, "Mirror found", "url", rawURL, "mirror", cu.Host)
		return cand, true
	}

	p.status(rawURL, "Exhausted subdomains")
	p.log.Warn(ctx, "No mirror serves path", "url", rawURL)
	return "", false
}

func (p *Prober) check(ctx context.Context, cand string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cand, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug(ctx, "Mirror probe failed", "candidate", cand, "error", err)
		return false
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 512)
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
