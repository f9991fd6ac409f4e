package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/auth"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
)

// Ключ gin.Context, под которым хранится Actor.
const ContextActorKey = "actor"

// AuthMiddleware проверяет JWT access токен и кладёт Actor в контекст запроса.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		actor, err := tokens.ParseAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// ActorFrom достаёт Actor, установленный AuthMiddleware.
func ActorFrom(c *gin.Context) (valueobject.Actor, bool) {
	v, ok := c.Get(ContextActorKey)
	if !ok {
		return valueobject.Actor{}, false
	}
	actor, ok := v.(valueobject.Actor)
	return actor, ok
}

// RequireRole пропускает только перечисленные роли.
func RequireRole(roles ...valueobject.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "недостаточно прав")
		c.Abort()
	}
}
