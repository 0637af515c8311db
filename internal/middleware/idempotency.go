package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"
)

// HeaderIdempotencyKey lets a client retry a rotation request safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// headerReplayed marks a response served from the idempotency store
const headerReplayed = "X-Idempotency-Replayed"

// IdempotencyStore keeps the responses of keyed POST requests so a retried
// request replays the first answer instead of creating a second rotation.
type IdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	now      func() time.Time
	stopChan chan struct{}
}

type idempotencyEntry struct {
	status    int
	headers   http.Header
	body      []byte
	expiresAt time.Time
	done      chan struct{} // closed once the first request finished
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // How long to keep results (default 24h)
	Cleanup time.Duration // Cleanup interval (default 1h)
}

// NewIdempotencyStore creates a new idempotency store
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup == 0 {
		cfg.Cleanup = time.Hour
	}

	store := &IdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      cfg.TTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go store.cleanupLoop(cfg.Cleanup)

	return store
}

// Stop stops the cleanup goroutine
func (s *IdempotencyStore) Stop() {
	close(s.stopChan)
}

func (s *IdempotencyStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *IdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if entry.finished() && entry.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

// claim returns the entry for key and whether the caller owns it. An owner
// must call complete; everyone else waits on entry.done and replays.
func (s *IdempotencyStore) claim(key string) (*idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		if !entry.finished() || entry.expiresAt.After(s.now()) {
			return entry, false
		}
	}
	entry := &idempotencyEntry{done: make(chan struct{})}
	s.entries[key] = entry
	return entry, true
}

func (s *IdempotencyStore) complete(entry *idempotencyEntry, rec *idempotencyResponseWriter) {
	s.mu.Lock()
	entry.status = rec.status
	entry.headers = rec.Header().Clone()
	entry.body = rec.body.Bytes()
	entry.expiresAt = s.now().Add(s.ttl)
	s.mu.Unlock()
	close(entry.done)
}

func (e *idempotencyEntry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *idempotencyEntry) replay(w http.ResponseWriter) {
	for k, v := range e.headers {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(e.status)
	_, _ = w.Write(e.body)
}

// idempotencyKey binds the client key to the actor and the request itself,
// so the same key on a different body is a different request.
func idempotencyKey(actor, clientKey, method, path string, body []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(actor), []byte(clientKey), []byte(method), []byte(path), body} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// idempotencyResponseWriter captures the response for caching
type idempotencyResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *idempotencyResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of POST requests that repeat an
// Idempotency-Key. Requests without the header pass through.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(HeaderIdempotencyKey)
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			actor := GetUserID(r.Context())
			if actor == "" {
				actor = r.RemoteAddr
			}
			key := idempotencyKey(actor, clientKey, r.Method, r.URL.Path, body)

			entry, owner := store.claim(key)
			if !owner {
				select {
				case <-entry.done:
					entry.replay(w)
				case <-r.Context().Done():
				}
				return
			}

			rec := &idempotencyResponseWriter{ResponseWriter: w, status: http.StatusOK}
			defer store.complete(entry, rec)
			next.ServeHTTP(rec, r)
		})
	}
}
