package middleware

import (
	"taskboard/internal/session"
	"taskboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequireLogin memeriksa cookie session dan me-resolve user yang sedang login.
// User ID disimpan di Locals("userID") untuk dipakai handler berikutnya.
// Request tanpa session yang valid di-redirect ke halaman login.
func RequireLogin(c *fiber.Ctx) error {
	token := c.Cookies(session.CookieName)
	if token == "" {
		return c.Redirect("/users/login", fiber.StatusFound)
	}

	userID, err := session.UserID(token)
	if err != nil {
		// Session sudah expired atau token tidak dikenal
		logger.SecurityLogger.Warn("Invalid session", zap.Error(err))
		session.ClearCookie(c)
		return c.Redirect("/users/login", fiber.StatusFound)
	}

	c.Locals("userID", userID)
	c.Locals("sessionToken", token)
	return c.Next()
}
