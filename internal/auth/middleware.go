package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const operatorIDKey ctxKey = "operator_id"

func OperatorIDFromContext(ctx context.Context) (uint64, bool) {
	v := ctx.Value(operatorIDKey)
	id, ok := v.(uint64)
	return id, ok
}

func RequireAuth(jwtSvc *JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")

			id, err := jwtSvc.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), operatorIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
