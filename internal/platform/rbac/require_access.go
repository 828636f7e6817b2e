package rbac

import (
	"context"
	"net/http"

	"synq/backend/internal/logging"
	"synq/backend/internal/platform/httpx"
	"synq/backend/internal/policy/engine"
	"synq/backend/internal/session"
	userdomain "synq/backend/internal/user/domain"
)

// UserGetter returns the user for an id, or an error. Used by RequireAccess to resolve the caller's email.
type UserGetter interface {
	CurrentUser(ctx context.Context, userID string) (*userdomain.User, error)
}

// RequireAccess ensures the caller is authenticated and the policy allows action.
// It must run behind session.Middleware.Require. Responds 401 without a user, 403 when denied,
// and 500 when the user or the decision cannot be resolved.
func RequireAccess(eval engine.Evaluator, users UserGetter, action string, log logging.Logger) httpx.Middleware {
	if log == nil {
		log = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, ok := session.UserIDFromContext(ctx)
			if !ok {
				_ = httpx.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			u, err := users.CurrentUser(ctx, userID)
			if err != nil {
				log.Error(ctx, "rbac: resolve caller", "user_id", userID, "error", err)
				_ = httpx.WriteJSONError(w, http.StatusInternalServerError, "failed to resolve caller")
				return
			}
			allowed, err := eval.Allow(ctx, engine.AccessInput{UserID: u.ID, Email: u.Email, Action: action})
			if err != nil {
				log.Error(ctx, "rbac: policy evaluation failed", "action", action, "error", err)
				_ = httpx.WriteJSONError(w, http.StatusInternalServerError, "failed to evaluate access policy")
				return
			}
			if !allowed {
				log.Warn(ctx, "rbac: access denied", "user_id", userID, "action", action)
				_ = httpx.WriteJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
