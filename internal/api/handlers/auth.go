package handlers

import (
	"fmt"
	"taskboard/internal/config"
	"taskboard/internal/session"
	"taskboard/pkg/crypto"
	"taskboard/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Auth handlers

func Register(c *fiber.Ctx) error {
	// struct RegisterRequest menerima inputan dari user
	type RegisterRequest struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"error": "Bad request",
		})
	}

	// Validasi dengan validator: login dan password wajib diisi
	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"error": "Login and password are required!",
		})
	}

	// Cek dulu apakah login sudah terpakai
	var existingID int
	err := config.DB.QueryRow(
		"SELECT id FROM users WHERE login = $1",
		req.Login).Scan(&existingID)
	if err == nil {
		logger.SecurityLogger.Warn("Duplicate login", zap.String("login", req.Login))
		return c.Status(400).JSON(fiber.Map{
			"error": "User already exists",
		})
	}

	// Password disimpan hanya dalam bentuk hash bcrypt
	hashedPassword, err := crypto.HashPassword(req.Password)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error hashing password",
		})
	}

	// Insert data user ke dalam database.
	// Unique constraint tetap jadi penjaga terakhir kalau ada
	// dua register bersamaan dengan login yang sama.
	var userID int
	err = config.DB.QueryRow(
		"INSERT INTO users (login, password) VALUES ($1, $2) RETURNING id",
		req.Login, hashedPassword).Scan(&userID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				logger.SecurityLogger.Warn("Duplicate login", zap.String("login", req.Login))
				return c.Status(400).JSON(fiber.Map{
					"error": "User already exists",
				})
			}
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error creating user",
		})
	}

	// Register tidak otomatis me-login-kan user
	logger.AuditLogger.Info("User registered successfully", zap.Int("userID", userID))
	return c.Status(201).JSON(fiber.Map{
		"message": "User registered successfully",
	})
}

func Login(c *fiber.Ctx) error {
	// struct LoginRequest menerima inputan dari user
	type LoginRequest struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"error": "Bad request",
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"error": "Login and password are required!",
		})
	}

	var user struct {
		ID       int
		Login    string
		Password string
	}

	err := config.DB.QueryRow(
		"SELECT id, login, password FROM users WHERE login = $1",
		req.Login).Scan(&user.ID, &user.Login, &user.Password)
	if err != nil {
		logger.SecurityLogger.Warn("User not found", zap.String("login", req.Login))
		return c.Status(401).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	// user.Password -> hash yang ada di database
	// req.Password -> password yang dikirimkan oleh user
	if !crypto.VerifyPassword(req.Password, user.Password) {
		logger.SecurityLogger.Warn("Invalid password", zap.String("login", req.Login))
		return c.Status(401).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	// Buat session server-side di Redis dan pasang cookie-nya
	token, err := session.Create(user.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error creating session", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error creating session",
		})
	}
	session.SetCookie(c, token)

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID))
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Logged in as %s", user.Login),
	})
}

// LoginPage adalah tujuan redirect dari RequireLogin untuk request anonim.
func LoginPage(c *fiber.Ctx) error {
	return c.Status(401).JSON(fiber.Map{
		"error": "Login required",
	})
}

func Logout(c *fiber.Ctx) error {
	token := c.Locals("sessionToken").(string)
	session.Destroy(token)
	session.ClearCookie(c)

	logger.AuditLogger.Info("Logout", zap.Int("user_id", c.Locals("userID").(int)))
	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}
