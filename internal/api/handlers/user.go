package handlers

import (
	"taskboard/internal/config"
	"taskboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// User handlers

// GetAllUsers mengembalikan semua user sebagai pasangan login + password hash.
// Endpoint ini publik dan mengekspos hash bcrypt apa adanya, mengikuti
// perilaku sistem aslinya. Setiap pemanggilan dicatat di security log.
func GetAllUsers(c *fiber.Ctx) error {
	rows, err := config.DB.Query("SELECT login, password FROM users")
	if err != nil {
		logger.ErrorLogger.Error("Error fetching users", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching users",
		})
	}
	defer rows.Close()

	users := []fiber.Map{}
	for rows.Next() {
		var login, password string
		if err := rows.Scan(&login, &password); err != nil {
			logger.ErrorLogger.Error("Error scanning users", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"error": "Error scanning users",
			})
		}
		users = append(users, fiber.Map{
			"login":    login,
			"password": password, // hash bcrypt, bukan plaintext
		})
	}

	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over users", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error iterating over users",
		})
	}

	logger.SecurityLogger.Warn("Password hashes served on /users/all",
		zap.String("ip", c.IP()),
		zap.Int("count", len(users)),
	)
	return c.JSON(users)
}
