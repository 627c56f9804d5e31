// Package presence implements the member presence cache and the name
// resolution used for message attribution.
//
// A member's identity is written to the state cache when a member-joined
// event is consumed and expires after a fixed TTL unless refreshed. Every
// successful read refreshes the TTL (sliding expiration), so the entry
// survives for as long as the member keeps sending messages, even long past
// the original join. The cache is best-effort by design: it avoids a second
// durable store and a cross-service coherence problem, and in exchange every
// consumer must degrade deterministically on a miss (see
// DerivePlaceholderName).
package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/example/chat-services/internal/domain"
	"github.com/example/chat-services/internal/statecache"
)

// DefaultTTL is the presence cache expiration window.
const DefaultTTL = 60 * time.Minute

var (
	// cacheHits counts presence lookups answered from the cache.
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_cache_hits_total",
		Help: "Total presence cache lookups that found a live entry.",
	})

	// cacheMisses counts lookups that fell back to a placeholder identity.
	// Store errors count as misses: the caller degrades the same way.
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_cache_misses_total",
		Help: "Total presence cache lookups that missed or failed.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}

// entry is the JSON shape stored under member keys.
type entry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	JoinedAt     time.Time `json:"joined_at"`
	LastAccessAt time.Time `json:"last_access_at"`
}

// Resolver maintains presence cache entries and resolves sender display
// names. All methods are safe for concurrent use; cache writes are
// last-writer-wins and need no coordination because every write resets the
// TTL to the same fixed window.
type Resolver struct {
	cache statecache.Store
	clk   clock.Clock
	ttl   time.Duration
	log   zerolog.Logger
}

// NewResolver builds a Resolver over cache. A nil clock falls back to wall
// time and a non-positive ttl falls back to DefaultTTL.
func NewResolver(cache statecache.Store, clk clock.Clock, ttl time.Duration, log zerolog.Logger) *Resolver {
	if clk == nil {
		clk = clock.New()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{cache: cache, clk: clk, ttl: ttl, log: log}
}

// OnMemberJoined (re)writes the cache entry for the joined member with a
// fresh TTL. It is idempotent: replaying the same event overwrites the entry
// with identical observable state.
func (r *Resolver) OnMemberJoined(ctx context.Context, evt domain.MemberJoinedEvent) error {
	e := entry{
		ID:           evt.ID,
		Name:         evt.Name,
		JoinedAt:     evt.JoinedAt,
		LastAccessAt: r.clk.Now().UTC(),
	}
	if err := r.put(ctx, e); err != nil {
		return err
	}
	r.log.Info().Str("member_id", evt.ID).Str("name", evt.Name).
		Dur("ttl", r.ttl).Msg("cached member presence")
	return nil
}

// ResolveName returns the cached display name for senderID, refreshing the
// entry's TTL as a side effect of the hit. A miss or a store error yields
// the empty string; it never returns an error because its callers always
// carry a fallback identity.
func (r *Resolver) ResolveName(ctx context.Context, senderID string) string {
	e, ok, err := r.get(ctx, senderID)
	if err != nil {
		cacheMisses.Inc()
		r.log.Error().Err(err).Str("member_id", senderID).Msg("presence cache read failed")
		return ""
	}
	if !ok {
		cacheMisses.Inc()
		r.log.Warn().Str("member_id", senderID).Msg("member not found in presence cache")
		return ""
	}

	cacheHits.Inc()
	r.Touch(ctx, senderID)
	return e.Name
}

// Touch refreshes the TTL of an existing entry by rewriting it with the
// current access time. Absent entries are left alone and failures are only
// logged: losing a touch merely shortens the sliding window.
func (r *Resolver) Touch(ctx context.Context, senderID string) {
	e, ok, err := r.get(ctx, senderID)
	if err != nil {
		r.log.Error().Err(err).Str("member_id", senderID).Msg("presence touch read failed")
		return
	}
	if !ok {
		return
	}

	e.LastAccessAt = r.clk.Now().UTC()
	if err := r.put(ctx, e); err != nil {
		r.log.Error().Err(err).Str("member_id", senderID).Msg("presence touch write failed")
		return
	}
	r.log.Debug().Str("member_id", senderID).Msg("extended presence expiration")
}

func (r *Resolver) get(ctx context.Context, memberID string) (entry, bool, error) {
	data, ok, err := r.cache.Get(ctx, cacheKey(memberID))
	if err != nil || !ok {
		return entry{}, false, err
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return entry{}, false, err
	}
	return e, true, nil
}

func (r *Resolver) put(ctx context.Context, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.cache.Put(ctx, cacheKey(e.ID), data, r.ttl)
}

// cacheKey namespaces member entries within the shared state store.
func cacheKey(memberID string) string { return "member:" + memberID }

// DerivePlaceholderName builds the deterministic fallback identity used when
// a sender cannot be resolved: "User_" plus the first 8 characters of the id
// (the whole id when shorter).
func DerivePlaceholderName(senderID string) string {
	if len(senderID) > 8 {
		senderID = senderID[:8]
	}
	return "User_" + senderID
}
