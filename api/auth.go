package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// =============================================================================
// TOKENS - Bearer tokens issued by the authenticate endpoints
// =============================================================================

const (
	RoleAccountant = "accountant"
	RoleWorker     = "worker"

	tokenTTL = 12 * time.Hour
)

// Actor is the authenticated caller extracted from a bearer token.
type Actor struct {
	Role     string
	Login    string // accountant login, empty for workers
	WorkerID int64  // worker surrogate id, 0 for accountants
}

type ctxKey int

const actorKey ctxKey = 0

// ActorFrom returns the authenticated actor stored on the request context.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

func (h *Handler) issueToken(actor Actor) (string, error) {
	claims := jwt.MapClaims{
		"jti":  uuid.NewString(),
		"role": actor.Role,
		"exp":  time.Now().Add(tokenTTL).Unix(),
		"iat":  time.Now().Unix(),
	}
	switch actor.Role {
	case RoleAccountant:
		claims["sub"] = actor.Login
	case RoleWorker:
		claims["sub"] = actor.WorkerID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.JWTSecret)
}

func (h *Handler) parseToken(r *http.Request) (Actor, bool) {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Actor{}, false
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
		return h.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Actor{}, false
	}

	role, _ := claims["role"].(string)
	switch role {
	case RoleAccountant:
		login, ok := claims["sub"].(string)
		if !ok || login == "" {
			return Actor{}, false
		}
		return Actor{Role: RoleAccountant, Login: login}, true
	case RoleWorker:
		// JSON numbers decode as float64.
		id, ok := claims["sub"].(float64)
		if !ok || id <= 0 {
			return Actor{}, false
		}
		return Actor{Role: RoleWorker, WorkerID: int64(id)}, true
	default:
		return Actor{}, false
	}
}

// =============================================================================
// MIDDLEWARE - Role gates for route groups
// =============================================================================

// RequireRole rejects requests without a valid bearer token for one of
// the given roles and stores the actor on the context.
func (h *Handler) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := h.parseToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					ctx := context.WithValue(r.Context(), actorKey, actor)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient role", nil)
		})
	}
}
