package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	apperrors "medisched/pkg/errors"
	httputil "medisched/pkg/http"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultIdempotencyHeader = "Idempotency-Key"

type IdempotencyStore interface {
	Get(key string) (*CachedResponse, bool)
	Set(key string, response *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	Fingerprint string
	CreatedAt   time.Time
}

// LRUIdempotencyStore keeps replayable responses for ttl, evicting the least
// recently used entry beyond size.
type LRUIdempotencyStore struct {
	cache *expirable.LRU[string, *CachedResponse]
}

func NewLRUIdempotencyStore(size int, ttl time.Duration) *LRUIdempotencyStore {
	return &LRUIdempotencyStore{
		cache: expirable.NewLRU[string, *CachedResponse](size, nil, ttl),
	}
}

func (s *LRUIdempotencyStore) Get(key string) (*CachedResponse, bool) {
	return s.cache.Get(key)
}

func (s *LRUIdempotencyStore) Set(key string, response *CachedResponse) {
	response.CreatedAt = time.Now()
	s.cache.Add(key, response)
}

func (s *LRUIdempotencyStore) Stop() {
	s.cache.Purge()
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored 2xx response for a repeated POST carrying
// the same key, so a retried booking does not create a second one. A key
// reused with a different body, or while the first request is still running,
// is rejected with 409.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = DefaultIdempotencyHeader
	}
	var inFlight sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerName)
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key = r.URL.Path + "|" + key

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeIdempotencyError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "Invalid request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := fingerprintOf(body)

			if cached, found := store.Get(key); found {
				if cached.Fingerprint != fingerprint {
					writeIdempotencyError(w, http.StatusConflict, apperrors.CodeConflict, "Idempotency-Key reused with a different request")
					return
				}
				replayCachedResponse(w, cached)
				return
			}

			if _, busy := inFlight.LoadOrStore(key, struct{}{}); busy {
				writeIdempotencyError(w, http.StatusConflict, apperrors.CodeConflict, "A request with this Idempotency-Key is in progress")
				return
			}
			defer inFlight.Delete(key)

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode >= 200 && capture.statusCode < 300 {
				store.Set(key, &CachedResponse{
					StatusCode:  capture.statusCode,
					Headers:     w.Header().Clone(),
					Body:        capture.body.Bytes(),
					Fingerprint: fingerprint,
				})
			}
		})
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		if key == RequestIDHeader {
			continue
		}
		w.Header()[key] = values
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func writeIdempotencyError(w http.ResponseWriter, status int, code, msg string) {
	_ = httputil.WriteJSON(w, status, httputil.ErrorResponse{Code: code, Error: msg})
}
