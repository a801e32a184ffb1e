package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/presence-service/internal/auth"
)

const localUserID = "user_id"

type TokenValidator interface {
	Validate(token string) (string, error)
}

// RequireUser resolves the caller from the bearer token and stores it in
// Locals under "user_id".
func RequireUser(v TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok, ok := auth.ParseBearer(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return JSONError(c, fiber.StatusUnauthorized, "missing auth")
		}
		sub, err := v.Validate(tok)
		if err != nil {
			return JSONError(c, fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(localUserID, sub)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) string {
	uid, _ := c.Locals(localUserID).(string)
	return uid
}
