package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"taskboard/internal/config"
	"taskboard/internal/models"
	"taskboard/internal/session"
	"taskboard/internal/websocket"
	"taskboard/pkg/logger"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Task handlers

// isAssigned mengecek apakah user saat ini masuk dalam daftar assignment task.
// Otorisasi edit/delete berdasarkan assignment, bukan ownership.
func isAssigned(userID, taskID int) (bool, error) {
	var assigned bool
	err := config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM task_assignments WHERE user_id = $1 AND task_id = $2)",
		userID, taskID).Scan(&assigned)
	return assigned, err
}

// taskExists mengecek apakah task dengan ID tersebut ada.
func taskExists(taskID int) (bool, error) {
	var exists bool
	err := config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)",
		taskID).Scan(&exists)
	return exists, err
}

// Dashboard mengembalikan task yang di-assign ke user yang sedang login,
// beserta flash notices yang belum dibaca.
func Dashboard(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	token := c.Locals("sessionToken").(string)

	rows, err := config.DB.Query(`
		SELECT t.id, t.owner_id, t.title, t.description, t.status, t.created_at, t.updated_at
		FROM tasks t
		JOIN task_assignments ta ON ta.task_id = t.id
		WHERE ta.user_id = $1
		ORDER BY t.id`,
		userID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching dashboard tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching tasks",
		})
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		err := rows.Scan(&task.ID, &task.OwnerID, &task.Title, &task.Description, &task.Status, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			logger.ErrorLogger.Error("Error scanning dashboard tasks", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"error": "Error scanning tasks",
			})
		}
		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over dashboard tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error iterating over tasks",
		})
	}

	logger.AuditLogger.Info("Dashboard fetched", zap.Int("user_id", userID))
	return c.JSON(fiber.Map{
		"tasks":   tasks,
		"notices": session.PopNotices(token),
	})
}

// CreateTask membuat task baru dengan user yang sedang login sebagai owner.
// Task baru TIDAK otomatis di-assign ke owner; assignment adalah relasi
// terpisah yang diubah lewat endpoint assign.
func CreateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	// struct TaskRequest menerima inputan dari user
	type TaskRequest struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description" validate:"required"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"error": "Bad request",
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"error": "Title and description are required!",
		})
	}

	// Status memakai default 'pending' dari skema
	var taskID int
	var status string
	err := config.DB.QueryRow(
		"INSERT INTO tasks (owner_id, title, description) VALUES ($1, $2, $3) RETURNING id, status",
		userID, req.Title, req.Description,
	).Scan(&taskID, &status)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error creating task",
		})
	}

	config.EventHub.Publish(websocket.TaskEvent{Type: "created", TaskID: taskID, UserID: userID})

	logger.AuditLogger.Info("Task created successfully", zap.Int("task_id", taskID), zap.Int("owner_id", userID))
	return c.Status(201).JSON(fiber.Map{
		"id":          taskID,
		"title":       req.Title,
		"description": req.Description,
		"status":      status,
		"owner_id":    userID,
	})
}

// EditTaskView mengembalikan data task untuk form edit.
func EditTaskView(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	token := c.Locals("sessionToken").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	// Coba ambil data task dari cache Redis
	var task models.Task
	cacheKey := fmt.Sprintf("task:%d", taskID)
	cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result()
	if err != nil || json.Unmarshal([]byte(cached), &task) != nil {
		err = config.DB.QueryRow(
			"SELECT id, owner_id, title, description, status, created_at, updated_at FROM tasks WHERE id = $1",
			taskID).Scan(&task.ID, &task.OwnerID, &task.Title, &task.Description, &task.Status, &task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			logger.ErrorLogger.Error("Task not found", zap.Error(err))
			return c.Status(404).JSON(fiber.Map{
				"error": "Task not found",
			})
		}

		// Simpan data task ke cache selama 1 jam
		if taskJSON, err := json.Marshal(task); err == nil {
			config.RedisClient.SetEX(config.Ctx, cacheKey, taskJSON, time.Hour)
		}
	}

	// Hanya user yang di-assign yang boleh membuka form edit
	assigned, err := isAssigned(userID, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking assignment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error checking assignment",
		})
	}
	if !assigned {
		logger.SecurityLogger.Warn("Unauthorized edit view",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		session.Flash(token, "You are not authorized to edit this task", "danger")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	return c.JSON(fiber.Map{
		"task": task,
	})
}

// EditTask memperbarui title, description, dan status sekaligus dari form,
// lalu redirect ke dashboard dengan flash notice.
func EditTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	token := c.Locals("sessionToken").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	exists, err := taskExists(taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching task",
		})
	}
	if !exists {
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	assigned, err := isAssigned(userID, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking assignment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error checking assignment",
		})
	}
	if !assigned {
		// Owner yang tidak di-assign juga ditolak
		logger.SecurityLogger.Warn("Unauthorized edit",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		session.Flash(token, "You are not authorized to edit this task", "danger")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	// Ketiga field di-set dari form dalam satu statement (atomic per request)
	_, err = config.DB.Exec(`
		UPDATE tasks
		SET title = $1, description = $2, status = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		c.FormValue("title"), c.FormValue("description"), c.FormValue("status"), taskID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error updating task",
		})
	}

	// Hapus cache Redis untuk task ini
	config.RedisClient.Del(config.Ctx, fmt.Sprintf("task:%d", taskID))
	config.EventHub.Publish(websocket.TaskEvent{Type: "updated", TaskID: taskID, UserID: userID})

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	session.Flash(token, "Task updated successfully!", "success")
	return c.Redirect("/dashboard", fiber.StatusFound)
}

// DeleteTask menghapus task. Aturan otorisasinya sama dengan edit:
// harus di-assign, ownership saja tidak cukup.
func DeleteTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	token := c.Locals("sessionToken").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	exists, err := taskExists(taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching task",
		})
	}
	if !exists {
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	assigned, err := isAssigned(userID, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking assignment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error checking assignment",
		})
	}
	if !assigned {
		logger.SecurityLogger.Warn("Unauthorized delete",
			zap.Int("user_id", userID), zap.Int("task_id", taskID))
		session.Flash(token, "You are not authorized to delete this task", "danger")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	// Baris assignment ikut terhapus lewat ON DELETE CASCADE
	_, err = config.DB.Exec("DELETE FROM tasks WHERE id = $1", taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error deleting task",
		})
	}

	config.RedisClient.Del(config.Ctx, fmt.Sprintf("task:%d", taskID))
	config.EventHub.Publish(websocket.TaskEvent{Type: "deleted", TaskID: taskID, UserID: userID})

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID), zap.Int("user_id", userID))
	session.Flash(token, "Task deleted successfully!", "success")
	return c.Redirect("/dashboard", fiber.StatusFound)
}

// AssignTask menambahkan user ke daftar assignment sebuah task.
// Semua user yang login boleh meng-assign task mana pun ke user mana pun.
func AssignTask(c *fiber.Ctx) error {
	token := c.Locals("sessionToken").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	exists, err := taskExists(taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching task",
		})
	}
	if !exists {
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	targetID, err := strconv.Atoi(c.FormValue("user_id"))
	if err != nil {
		session.Flash(token, "User not found", "danger")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	var userExists bool
	err = config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)",
		targetID).Scan(&userExists)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching user",
		})
	}
	if !userExists {
		session.Flash(token, "User not found", "danger")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	assigned, err := isAssigned(targetID, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking assignment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error checking assignment",
		})
	}
	if assigned {
		// Sudah di-assign: no-op dengan warning, bukan error
		session.Flash(token, "Task is already assigned to this user", "warning")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	_, err = config.DB.Exec(
		"INSERT INTO task_assignments (user_id, task_id) VALUES ($1, $2)",
		targetID, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error assigning task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error assigning task",
		})
	}

	config.EventHub.Publish(websocket.TaskEvent{Type: "assigned", TaskID: taskID, UserID: targetID})

	logger.AuditLogger.Info("Task assigned", zap.Int("task_id", taskID), zap.Int("user_id", targetID))
	session.Flash(token, "Task assigned to user successfully!", "success")
	return c.Redirect("/dashboard", fiber.StatusFound)
}

// DeassignTask melepas user dari daftar assignment sebuah task.
func DeassignTask(c *fiber.Ctx) error {
	token := c.Locals("sessionToken").(string)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	exists, err := taskExists(taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching task",
		})
	}
	if !exists {
		return c.Status(404).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	targetID, err := strconv.Atoi(c.FormValue("user_id"))
	if err != nil {
		session.Flash(token, "User not found", "danger")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	var userExists bool
	err = config.DB.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)",
		targetID).Scan(&userExists)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching user",
		})
	}
	if !userExists {
		session.Flash(token, "User not found", "danger")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	assigned, err := isAssigned(targetID, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking assignment", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error checking assignment",
		})
	}
	if !assigned {
		// Pasangan yang tidak pernah di-assign: no-op dengan warning
		session.Flash(token, "Task is not assigned to this user", "warning")
		return c.Redirect("/dashboard", fiber.StatusFound)
	}

	_, err = config.DB.Exec(
		"DELETE FROM task_assignments WHERE user_id = $1 AND task_id = $2",
		targetID, taskID)
	if err != nil {
		logger.ErrorLogger.Error("Error deassigning task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error deassigning task",
		})
	}

	config.EventHub.Publish(websocket.TaskEvent{Type: "deassigned", TaskID: taskID, UserID: targetID})

	logger.AuditLogger.Info("Task deassigned", zap.Int("task_id", taskID), zap.Int("user_id", targetID))
	session.Flash(token, "Task deassigned from user successfully!", "success")
	return c.Redirect("/dashboard", fiber.StatusFound)
}

// ListAllTasks mengembalikan semua task sebagai JSON.
// Endpoint ini publik, berbeda dengan dashboard.
func ListAllTasks(c *fiber.Ctx) error {
	rows, err := config.DB.Query(
		"SELECT id, owner_id, title, description, status FROM tasks ORDER BY id")
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error fetching tasks",
		})
	}
	defer rows.Close()

	tasks := []fiber.Map{}
	for rows.Next() {
		var id, ownerID int
		var title, description, status string
		if err := rows.Scan(&id, &ownerID, &title, &description, &status); err != nil {
			logger.ErrorLogger.Error("Error scanning tasks", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"error": "Error scanning tasks",
			})
		}
		tasks = append(tasks, fiber.Map{
			"id":          id,
			"title":       title,
			"description": description,
			"status":      status,
			"owner_id":    ownerID,
		})
	}

	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"error": "Error iterating over tasks",
		})
	}

	return c.JSON(tasks)
}
