// Package domain holds the value types shared by every ProxyWhirl component:
// the proxy record and its live statistics, the circuit breaker and
// rate-limit state, the retry policy, and the closed set of error kinds.
// Nothing in this package performs I/O, and the only lock it takes is the
// proxy's own Mu inside Proxy.View — it is the data the rest of the core
// mutates under its own concurrency discipline.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Scheme is the forward-proxy protocol a Proxy speaks.
type Scheme string

const (
	SchemeHTTP   Scheme = "http"
	SchemeHTTPS  Scheme = "https"
	SchemeSOCKS4 Scheme = "socks4"
	SchemeSOCKS5 Scheme = "socks5"
)

// Health is a derived summary used only for observability — selection reads
// breaker state, never this field (§3).
type Health string

const (
	HealthUnknown   Health = "unknown"
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

// Endpoint is the immutable connection information for one proxy.
type Endpoint struct {
	Scheme      Scheme
	Host        string
	Port        int
	Username    string
	Password    string // secret; never rendered in logs, metric labels, or exports
	CountryCode string
	Region      string
	Tags        []string
}

// ID derives the stable identity required for dedup and breaker keying from
// scheme+host+port+username — deliberately excluding the password so the
// identity never leaks a credential, and excluding any random component so
// the same endpoint always maps to the same id across restarts.
func (e Endpoint) ID() string {
	material := fmt.Sprintf("%s://%s@%s:%d", e.Scheme, e.Username, e.Host, e.Port)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])[:16]
}

// URL renders the bit-exact wire form from §6: scheme://[user[:pass]@]host:port
// with credentials URL-encoded and IPv6 hosts bracketed. Pass redactPassword
// to render the form safe for logs/exports.
func (e Endpoint) URL(redactPassword bool) string {
	host := e.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	hostport := fmt.Sprintf("%s:%d", host, e.Port)

	if e.Username == "" {
		return fmt.Sprintf("%s://%s", e.Scheme, hostport)
	}

	user := url.QueryEscape(e.Username)
	if redactPassword || e.Password == "" {
		if redactPassword && e.Password != "" {
			return fmt.Sprintf("%s://%s:***@%s", e.Scheme, user, hostport)
		}
		return fmt.Sprintf("%s://%s@%s", e.Scheme, user, hostport)
	}
	pass := url.QueryEscape(e.Password)
	return fmt.Sprintf("%s://%s:%s@%s", e.Scheme, user, pass, hostport)
}

// Stats holds the live, mostly-monotonic counters for one proxy (§3).
// Every field here is mutated only by the Pool (RecordOutcome, and
// MarkStarted/MarkCompleted for the started/active counters) under the
// per-proxy lock — strategies and callers only ever read a snapshot.
type Stats struct {
	RequestsStarted   int64
	RequestsActive    int64
	RequestsCompleted int64
	RequestsSucceeded int64
	RequestsFailed    int64

	EMAResponseTimeMs float64

	WindowStart            time.Time
	WindowDurationSeconds  int64
	WindowSucceeded        int64
	WindowFailed           int64

	LastSuccessAt       time.Time
	LastFailureAt       time.Time
	ConsecutiveFailures int
}

// SuccessRate returns succeeded / max(completed, 1), per the §3 invariant.
func (s Stats) SuccessRate() float64 {
	completed := s.RequestsCompleted
	if completed < 1 {
		completed = 1
	}
	return float64(s.RequestsSucceeded) / float64(completed)
}

// Proxy is the authoritative in-memory record for one forward proxy.
// Identity and Endpoint are immutable after creation; Stats and Health are
// mutated only under Mu, which the Pool holds for the duration of a single
// statistics update (§4.1: "no I/O under lock").
type Proxy struct {
	Mu sync.Mutex

	ID       string
	Endpoint Endpoint

	Stats  Stats
	Health Health

	createdAt time.Time
}

// NewProxy constructs a Proxy record with identity derived from its
// endpoint, per §3's "stable id ... required for dedup and breaker keying".
func NewProxy(ep Endpoint) *Proxy {
	return &Proxy{
		ID:        ep.ID(),
		Endpoint:  ep,
		Health:    HealthUnknown,
		createdAt: time.Now(),
	}
}

// View returns a shallow, lock-free copy of the selection-relevant fields.
// Callers must never read Proxy fields directly outside the owning Pool;
// View is the only sanctioned read path (§4.1).
func (p *Proxy) View() ProxyView {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	return ProxyView{
		ID:                  p.ID,
		Endpoint:            p.Endpoint,
		RequestsStarted:     p.Stats.RequestsStarted,
		RequestsActive:      p.Stats.RequestsActive,
		RequestsCompleted:   p.Stats.RequestsCompleted,
		RequestsSucceeded:   p.Stats.RequestsSucceeded,
		RequestsFailed:      p.Stats.RequestsFailed,
		EMAResponseTimeMs:   p.Stats.EMAResponseTimeMs,
		LastSuccessAt:       p.Stats.LastSuccessAt,
		LastFailureAt:       p.Stats.LastFailureAt,
		ConsecutiveFailures: p.Stats.ConsecutiveFailures,
		Health:              p.Health,
		SuccessRate:         p.Stats.SuccessRate(),
		CreatedAt:           p.createdAt,
	}
}

// ProxyView is the shallow, selection-relevant snapshot of a Proxy. Pool
// snapshots are built entirely out of ProxyView values so that strategies
// never touch the live *Proxy and therefore never need a lock (§4.2, §5).
type ProxyView struct {
	ID       string
	Endpoint Endpoint

	RequestsStarted   int64
	RequestsActive    int64
	RequestsCompleted int64
	RequestsSucceeded int64
	RequestsFailed    int64

	EMAResponseTimeMs float64

	LastSuccessAt       time.Time
	LastFailureAt       time.Time
	ConsecutiveFailures int

	Health      Health
	SuccessRate float64
	CreatedAt   time.Time
}

// PoolSnapshot is one consistent read of the whole pool for selection.
type PoolSnapshot struct {
	Version  int64
	Proxies  []ProxyView
}
