package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/careloop/visit-media-service/internal/ratelimit"
	"github.com/careloop/visit-media-service/internal/utils/response"
)

// UploadRateLimit gates presigned-upload issuance per staff member. Assumes
// AuthMiddleware ran first.
func UploadRateLimit(limiter *ratelimit.UploadLimiter, limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			staffID, ok := GetStaffIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					errors.New("staff member not authenticated")))
				return
			}

			allowed, err := limiter.Allow(r.Context(), staffID)
			if err != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
					fmt.Errorf("rate limit check failed: %w", err)))
				return
			}

			remaining, _ := limiter.Remaining(r.Context(), staffID)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", "60")

			if !allowed {
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("rate limit exceeded")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
