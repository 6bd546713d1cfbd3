package server

import (
	"container/list"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/haytac/emoji-cdn/internal/metrics"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	defaultMaxClients = 10000
)

type clientLimiter struct {
	key      string
	limiter  *rate.Limiter
	lastSeen time.Time
	element  *list.Element
}

// clientLimiters hands out one token bucket per client address. Entries are
// kept in LRU order (front = most recent) and the map never holds more than
// maxClients buckets.
type clientLimiters struct {
	rps        rate.Limit
	burst      int
	maxClients int

	mu      sync.Mutex
	clients map[string]*clientLimiter
	lru     *list.List
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiters{
		rps:        rate.Limit(rps),
		burst:      burst,
		maxClients: defaultMaxClients,
		clients:    make(map[string]*clientLimiter),
		lru:        list.New(),
	}
}

func (c *clientLimiters) get(key string, now time.Time) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.clients[key]; ok {
		cl.lastSeen = now
		c.lru.MoveToFront(cl.element)
		return cl.limiter
	}

	c.evictIdle(now)
	for len(c.clients) >= c.maxClients {
		c.evict(c.lru.Back())
	}

	cl := &clientLimiter{key: key, limiter: rate.NewLimiter(c.rps, c.burst), lastSeen: now}
	cl.element = c.lru.PushFront(cl)
	c.clients[key] = cl
	return cl.limiter
}

// evictIdle drops buckets from the cold end until it reaches one seen within the TTL.
func (c *clientLimiters) evictIdle(now time.Time) {
	for e := c.lru.Back(); e != nil; e = c.lru.Back() {
		if now.Sub(e.Value.(*clientLimiter).lastSeen) <= limiterIdleTTL {
			return
		}
		c.evict(e)
	}
}

func (c *clientLimiters) evict(e *list.Element) {
	cl := c.lru.Remove(e).(*clientLimiter)
	delete(c.clients, cl.key)
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// middleware rejects clients that exceed their bucket with 429.
func (c *clientLimiters) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.get(clientKey(r), time.Now()).Allow() {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// trustedRealIP applies chi's RealIP only to requests whose TCP peer is one of
// the trusted proxies. Everyone else keeps their socket address.
func trustedRealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		withRealIP := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peerTrusted(r.RemoteAddr, trusted) {
				withRealIP.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func peerTrusted(remoteAddr string, trusted []netip.Prefix) bool {
	var addr netip.Addr
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		addr = ap.Addr()
	} else if a, err := netip.ParseAddr(remoteAddr); err == nil {
		addr = a
	} else {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
