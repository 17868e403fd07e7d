package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// bearerMiddleware rejects requests without a valid bearer token and
// stores the verified identity in the request context.
func bearerMiddleware(verifier contract.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			identity, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}
