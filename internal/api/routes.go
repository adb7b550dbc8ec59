package api

import (
	"taskboard/internal/api/handlers"
	"taskboard/internal/config"
	"taskboard/internal/middleware"
	myws "taskboard/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// NewApp membangun aplikasi Fiber dengan seluruh route terpasang.
// Dipakai oleh main dan oleh test.
func NewApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.ErrorHandler())
	RegisterRoutes(app)
	return app
}

func RegisterRoutes(app *fiber.App) {
	// User
	userRoutes := app.Group("/users")
	userRoutes.Post("/register", handlers.Register)
	userRoutes.Post("/login", handlers.Login)
	userRoutes.Get("/login", handlers.LoginPage)
	userRoutes.Post("/logout", middleware.RequireLogin, handlers.Logout)
	userRoutes.Get("/all", handlers.GetAllUsers)

	// Dashboard hanya untuk user yang login
	app.Get("/dashboard", middleware.RequireLogin, handlers.Dashboard)

	// Task
	taskRoutes := app.Group("/tasks")
	taskRoutes.Get("/", handlers.ListAllTasks)
	taskRoutes.Post("/new", middleware.RequireLogin, handlers.CreateTask)
	taskRoutes.Get("/:id/edit", middleware.RequireLogin, handlers.EditTaskView)
	taskRoutes.Post("/:id/edit", middleware.RequireLogin, handlers.EditTask)
	taskRoutes.Post("/:id/delete", middleware.RequireLogin, handlers.DeleteTask)
	taskRoutes.Post("/:id/assign", middleware.RequireLogin, handlers.AssignTask)
	taskRoutes.Post("/:id/deassign", middleware.RequireLogin, handlers.DeassignTask)

	// Event feed task via WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(func(conn *websocket.Conn) {
		client := &myws.Client{Conn: conn}
		config.EventHub.Register <- client
		// Baca terus sampai koneksi ditutup; feed ini satu arah
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		config.EventHub.Unregister <- client
	}))
}
