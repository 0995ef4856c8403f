package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/benx421/payment-gateway/reconciler/internal/api"
	"github.com/golang-jwt/jwt/v5"
)

const protectedPrefix = "/api/v1/payments/"

type userRefKey struct{}

// Claims are the bearer token claims issued by the user service
type Claims struct {
	jwt.RegisteredClaims
}

var errUnauthorized = errors.New("unauthorized")

// Authenticate requires an HS256 bearer token on the payments API and stores
// its subject as the caller's user reference. Callback and ops routes are not
// covered; gateways authenticate through their own verifiers.
func Authenticate(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, protectedPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parseToken(extractBearer(r), secret)
			if err != nil {
				logger.Warn("rejected payment api request",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="payments"`)
				writeError(w, http.StatusUnauthorized, api.ErrorCodeUnauthorized, "missing or invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserRef(r.Context(), claims.Subject)))
		})
	}
}

// WithUserRef returns a context carrying the caller's user reference
func WithUserRef(ctx context.Context, userRef string) context.Context {
	return context.WithValue(ctx, userRefKey{}, userRef)
}

// UserRef returns the user reference set by Authenticate
func UserRef(ctx context.Context) (string, bool) {
	ref, ok := ctx.Value(userRefKey{}).(string)
	return ref, ok && ref != ""
}

func parseToken(token string, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, errUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnauthorized
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, errUnauthorized
	}
	return claims, nil
}

func extractBearer(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeError(w http.ResponseWriter, status int, code api.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best effort response writing
	json.NewEncoder(w).Encode(api.Error{Error: code, Message: message})
}
