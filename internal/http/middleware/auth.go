package middleware

import (
	"context"
	"net/http"
	"strings"

	"placement/internal/app"
	"placement/internal/common"
	"placement/internal/http/response"
	"placement/internal/security"
)

type contextKey string

const ContextActorKey contextKey = "actor"

type TokenParser interface {
	Parse(token string) (*security.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenParser
}

func NewAuthMiddleware(jwt TokenParser) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, common.NewError(common.CodeUnauthorized, "invalid authorization header", nil))
			return
		}
		claims, err := m.jwt.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(w, common.NewError(common.CodeUnauthorized, "invalid token", err))
			return
		}
		userID, err := common.ParseUUID(claims.UserID)
		if err != nil {
			response.Error(w, common.NewError(common.CodeUnauthorized, "invalid user id", err))
			return
		}
		role, ok := app.ParseRole(claims.Role)
		if !ok {
			response.Error(w, common.NewError(common.CodeForbidden, "role not recognized", nil))
			return
		}
		actor := app.Actor{UserID: userID, Role: role, Department: claims.Department}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func RequireRole(roles ...app.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				response.Error(w, common.NewError(common.CodeUnauthorized, "not authenticated", nil))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, common.NewError(common.CodeForbidden, "insufficient role", nil))
		})
	}
}

func WithActor(ctx context.Context, actor app.Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}

func ActorFromContext(ctx context.Context) (app.Actor, bool) {
	actor, ok := ctx.Value(ContextActorKey).(app.Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) (common.UUID, bool) {
	actor, ok := ActorFromContext(ctx)
	return actor.UserID, ok
}
