package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tableserve/internal/domain"
)

var errUnauthorized = errors.New("missing or invalid staff credentials")

// Authenticator resolves the staff member behind a request. Full role logic
// belongs to the external auth system; this surface only needs to know which
// restaurant the actor manages.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.Actor, error)
}

// StaticTokens authenticates staff by bearer token from configuration.
// It stands in for the external auth collaborator in development and tests.
type StaticTokens struct {
	// tokens maps a bearer token to the restaurant id it manages.
	tokens map[string]string
}

func NewStaticTokens(tokens map[string]string) *StaticTokens {
	return &StaticTokens{tokens: tokens}
}

func (a *StaticTokens) Authenticate(r *http.Request) (domain.Actor, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return domain.Actor{}, errUnauthorized
	}

	restaurantID, ok := a.tokens[token]
	if !ok {
		return domain.Actor{}, errUnauthorized
	}
	return domain.Actor{Name: "staff", RestaurantID: restaurantID}, nil
}

type actorKey struct{}

// requireStaff authenticates the request and stores the actor in the context.
func (s *Server) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(domain.Actor)
	return actor
}
