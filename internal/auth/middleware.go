package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/opsdesk/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// ActorHeader carries a caller display name when no bearer token is sent.
const ActorHeader = "X-Actor"

// ActorMiddleware resolves the caller identity used as the fallback history actor.
type ActorMiddleware struct {
	tokens       *TokenManager
	requireToken bool
}

// NewActorMiddleware constructs middleware. With requireToken set, requests without a
// valid bearer token are rejected.
func NewActorMiddleware(tokens *TokenManager, requireToken bool) *ActorMiddleware {
	return &ActorMiddleware{tokens: tokens, requireToken: requireToken}
}

// Handle stores the caller actor in the request locals.
func (m *ActorMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if m.requireToken {
			return apperrors.NewUnauthorized("missing authorization header")
		}
		if actor := strings.TrimSpace(c.Get(ActorHeader)); actor != "" {
			c.Locals(actorKey, actor)
		}
		return c.Next()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	if m.tokens == nil {
		return apperrors.NewUnauthorized("token authentication is not configured")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(actorKey, strings.TrimSpace(claims.Name))
	return c.Next()
}

// ActorFromContext returns the caller actor, or "" when the request is anonymous.
func ActorFromContext(c *fiber.Ctx) string {
	actor, _ := c.Locals(actorKey).(string)
	return actor
}
