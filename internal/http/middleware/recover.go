package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"placement/internal/common"
	"placement/internal/http/response"
	"placement/internal/observability"
)

func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				observability.FromContext(r.Context(), logger).Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				response.Error(w, common.NewError(common.CodeInternal, "internal error", fmt.Errorf("panic: %v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
