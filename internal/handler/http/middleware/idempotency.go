package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	idempotencyLockTTL = 30 * time.Second
	maxIdempotencyKey  = 128
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bufferedWriter captures the response so it can be stored after the handler returns.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(status int) {
	b.status = status
	b.ResponseWriter.WriteHeader(status)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

func idempotencyCacheKey(r *http.Request, p Principal, key string) string {
	return fmt.Sprintf("idemp:%s:%s:%s", r.URL.Path, p.Key(), key)
}

// Idempotency replays the stored response of a POST carrying an
// Idempotency-Key already seen for the same caller and path. A retry that
// arrives while the first attempt is still running gets DUPLICATE_REQUEST.
// Server errors are not stored so the client may retry them.
func Idempotency(rdb redis.Cmdable, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if rdb == nil || key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				response.BadRequest(w, "Idempotency-Key is too long", nil)
				return
			}

			p, _ := PrincipalFromContext(r.Context())
			ctx := r.Context()
			cacheKey := idempotencyCacheKey(r, p, key)
			lockKey := cacheKey + ":lock"

			val, err := rdb.Get(ctx, cacheKey).Bytes()
			switch {
			case err == nil:
				var cached cachedResponse
				if err := json.Unmarshal(val, &cached); err == nil {
					w.Header().Set("Content-Type", cached.ContentType)
					w.Header().Set(HeaderReplayed, "true")
					w.WriteHeader(cached.Status)
					_, _ = w.Write(cached.Body)
					return
				}
				slog.Warn("Discarding corrupt idempotency entry", "key", cacheKey)
			case !errors.Is(err, redis.Nil):
				// Store unavailable: serve without replay.
				slog.Warn("Idempotency store unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "1", idempotencyLockTTL).Result()
			if err != nil {
				slog.Warn("Idempotency lock unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				response.Error(w, http.StatusConflict, "DUPLICATE_REQUEST", "A request with this Idempotency-Key is still being processed", nil)
				return
			}

			bw := &bufferedWriter{ResponseWriter: w}
			next.ServeHTTP(bw, r)

			if bw.status > 0 && bw.status < http.StatusInternalServerError {
				payload, err := json.Marshal(cachedResponse{
					Status:      bw.status,
					ContentType: bw.Header().Get("Content-Type"),
					Body:        bw.body.Bytes(),
				})
				if err == nil {
					if err := rdb.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
						slog.Warn("Failed to store idempotent response", "error", err)
					}
				}
			}
			if err := rdb.Del(ctx, lockKey).Err(); err != nil {
				slog.Warn("Failed to release idempotency lock", "error", err)
			}
		})
	}
}
