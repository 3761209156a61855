package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/claim-console/internal/logging"
)

// Registry holds the live sessions of this process. The API URL override of each session is
// also written to the Cache so it outlives a restart when the cache is Redis.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	cache      Cache
	defaultURL string
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time

	loadRetry  retryPolicy
	storeRetry retryPolicy
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

func NewRegistry(cache Cache, defaultURL string, ttl time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:   make(map[string]*entry),
		cache:      cache,
		defaultURL: defaultURL,
		ttl:        ttl,
		logger:     logger.Named("session_registry"),
		now:        time.Now,
		loadRetry:  loadPolicy,
		storeRetry: storePolicy,
	}
}

func apiURLKey(sessionID string) string {
	return fmt.Sprintf("session:%s:api_url", sessionID)
}

// Get returns the session for id, creating it when unknown.
func (r *Registry) Get(ctx context.Context, id string) *Session {
	r.mu.Lock()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.session
	}
	r.mu.Unlock()

	baseURL := r.defaultURL
	var stored string
	err := r.withRetry(ctx, r.loadRetry, id, "session.load_api_url", func() error {
		value, err := r.cache.Get(ctx, apiURLKey(id))
		if err != nil {
			return err
		}
		stored = value
		return nil
	})
	switch {
	case err == nil && stored != "":
		baseURL = stored
	case err != nil && !errors.Is(err, ErrCacheMiss):
		logging.WithOperation(r.logger, "session.load_api_url", id).Warn("falling back to default API URL", zap.Error(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
		return e.session
	}
	r.evictExpiredLocked()
	s := newSession(id, baseURL)
	r.sessions[id] = &entry{session: s, lastSeen: r.now()}
	return s
}

// SetBaseURL applies the override immediately and persists it. A store failure is returned
// but the in-process value stays in effect.
func (r *Registry) SetBaseURL(ctx context.Context, s *Session, baseURL string) error {
	s.setBaseURL(baseURL)
	return r.withRetry(ctx, r.storeRetry, s.ID, "session.store_api_url", func() error {
		return r.cache.Set(ctx, apiURLKey(s.ID), baseURL, r.ttl)
	})
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) evictExpiredLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) && e.session.State() != StateUploading {
			delete(r.sessions, id)
		}
	}
}
