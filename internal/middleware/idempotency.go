package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
)

// IdempotencyStore keeps the responses of POST/PATCH requests sent with an
// Idempotency-Key so a client retrying a payment call gets the first result
// instead of a second charge.
type IdempotencyStore struct {
	mu       sync.RWMutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

type idempotencyEntry struct {
	fingerprint string // sha256 of the request body
	status      int
	headers     http.Header
	body        []byte
	expiresAt   time.Time
	inFlight    bool
	done        chan struct{}
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // How long to keep idempotency results (default 24h)
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
		stopChan: make(chan struct{}),
		now:      time.Now,
	}

	go store.cleanupLoop(cfg.Cleanup)

	return store
}

// Stop stops the cleanup goroutine
func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Len returns the number of stored entries
func (s *IdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
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
		if entry.expiresAt.Before(now) && !entry.inFlight {
			delete(s.entries, key)
		}
	}
}

// scopeKey identifies a key per caller and endpoint. The body is compared
// separately so a reused key with a different payload is rejected.
func scopeKey(userID, idempotencyKey, method, path string) string {
	h := sha256.New()
	for _, part := range []string{userID, idempotencyKey, method, path} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
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

func replay(w http.ResponseWriter, entry *idempotencyEntry) {
	for k, v := range entry.headers {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(entry.status)
	_, _ = w.Write(entry.body)
}

// claim returns the stored entry for key when one can be replayed, or marks
// the key in flight for this request. A concurrent request with the same key
// waits for the first one to finish.
func (s *IdempotencyStore) claim(key, fp string) (stored, claimed *idempotencyEntry) {
	for {
		s.mu.Lock()
		entry, exists := s.entries[key]
		if !exists || (!entry.inFlight && !entry.expiresAt.After(s.now())) {
			entry = &idempotencyEntry{fingerprint: fp, inFlight: true, done: make(chan struct{})}
			s.entries[key] = entry
			s.mu.Unlock()
			return nil, entry
		}
		if !entry.inFlight {
			s.mu.Unlock()
			return entry, nil
		}
		done := entry.done
		s.mu.Unlock()
		<-done
	}
}

// Idempotency returns middleware that handles idempotency keys for POST/PATCH requests
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID := GetUserID(r.Context())
			if userID == "" {
				userID = r.RemoteAddr
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := scopeKey(userID, idempotencyKey, r.Method, r.URL.Path)
			fp := fingerprint(body)

			stored, entry := store.claim(key, fp)
			if stored != nil {
				if stored.fingerprint != fp {
					model.NewConflictError("Idempotency-Key was already used with a different request body").WriteJSON(w)
					return
				}
				replay(w, stored)
				return
			}

			irw := &idempotencyResponseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}
			next.ServeHTTP(irw, r)

			store.mu.Lock()
			if irw.status >= http.StatusInternalServerError {
				// Server failures are not final; the client may retry with the same key
				delete(store.entries, key)
			} else {
				entry.status = irw.status
				entry.headers = irw.Header().Clone()
				entry.body = irw.body.Bytes()
				entry.expiresAt = store.now().Add(store.ttl)
			}
			entry.inFlight = false
			close(entry.done)
			store.mu.Unlock()
		})
	}
}
