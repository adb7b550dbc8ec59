package handlers_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"taskboard/configs"
	"taskboard/internal/api"
	"taskboard/internal/config"
	"taskboard/internal/repository"
	"taskboard/internal/session"
	myws "taskboard/internal/websocket"
	"taskboard/pkg/logger"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
)

// infraErr diisi jika postgres/redis tidak tersedia; semua test di-skip.
var infraErr error

func TestMain(m *testing.M) {
	// Set GO_ENV to "test" so LoadConfig does not print .env logs
	os.Setenv("GO_ENV", "test")
	logger.InitLoggers()

	code := run(m)
	logger.SyncLoggers()
	os.Exit(code)
}

func run(m *testing.M) int {
	cleanup, err := setupInfra()
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		infraErr = err
		return m.Run()
	}

	repository.CreateTableIfNotExists(config.DB)

	config.EventHub = myws.NewHub()
	go config.EventHub.Run()

	return m.Run()
}

// setupInfra mencoba database test dari environment dulu; kalau tidak ada,
// postgres dan redis dijalankan lewat dockertest.
func setupInfra() (func(), error) {
	cfg := configs.LoadConfig()
	if cfg.DBHost != "" && cfg.DBNameTest != "" {
		psqlconn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBNameTest)
		db, err := sql.Open("postgres", psqlconn)
		if err == nil && db.Ping() == nil {
			client := redis.NewClient(&redis.Options{
				Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			})
			if client.Ping(config.Ctx).Err() == nil {
				config.DB = db
				config.RedisClient = client
				return func() {
					db.Close()
					client.Close()
				}, nil
			}
			client.Close()
		}
		if db != nil {
			db.Close()
		}
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("dockertest pool: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("docker unavailable: %w", err)
	}
	pool.MaxWait = 2 * time.Minute

	pg, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=taskboard_test",
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	rd, err := pool.Run("redis", "7-alpine", nil)
	if err != nil {
		pool.Purge(pg)
		return nil, fmt.Errorf("start redis: %w", err)
	}
	cleanup := func() {
		pool.Purge(pg)
		pool.Purge(rd)
	}

	err = pool.Retry(func() error {
		db, err := sql.Open("postgres", fmt.Sprintf(
			"host=localhost port=%s user=postgres password=secret dbname=taskboard_test sslmode=disable",
			pg.GetPort("5432/tcp")))
		if err != nil {
			return err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return err
		}
		config.DB = db
		return nil
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	config.RedisClient = redis.NewClient(&redis.Options{
		Addr: "localhost:" + rd.GetPort("6379/tcp"),
	})
	if err := pool.Retry(func() error {
		return config.RedisClient.Ping(config.Ctx).Err()
	}); err != nil {
		cleanup()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return cleanup, nil
}

func requireInfra(t *testing.T) {
	t.Helper()
	if infraErr != nil {
		t.Skipf("Skipping, test infrastructure unavailable: %v", infraErr)
	}
}

// createTestApp menginisialisasi aplikasi Fiber dengan route yang akan di-test
func createTestApp() *fiber.App {
	return api.NewApp()
}

func uniqueLogin(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

// doJSON mengirim request dengan body JSON, opsional dengan cookie session.
func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}, sessionToken string) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Error encoding request body: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionToken})
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// doForm mengirim request dengan body form-urlencoded.
func doForm(t *testing.T, app *fiber.App, method, path string, form url.Values, sessionToken string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionToken})
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Error decoding response body: %v", err)
	}
}

// registerUser mendaftarkan user baru dan mengembalikan ID-nya dari database.
func registerUser(t *testing.T, app *fiber.App, login, password string) int {
	t.Helper()
	resp := doJSON(t, app, "POST", "/users/register", map[string]string{
		"login":    login,
		"password": password,
	}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Register %s: expected status 201 but got %d", login, resp.StatusCode)
	}

	var userID int
	if err := config.DB.QueryRow("SELECT id FROM users WHERE login = $1", login).Scan(&userID); err != nil {
		t.Fatalf("Error fetching registered user %s: %v", login, err)
	}
	return userID
}

// loginUser login dan mengembalikan token session dari cookie.
func loginUser(t *testing.T, app *fiber.App, login, password string) string {
	t.Helper()
	resp := doJSON(t, app, "POST", "/users/login", map[string]string{
		"login":    login,
		"password": password,
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Login %s: expected status 200 but got %d", login, resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == session.CookieName && cookie.Value != "" {
			return cookie.Value
		}
	}
	t.Fatalf("Login %s: no session cookie in response", login)
	return ""
}

// createTask membuat task lewat endpoint dan mengembalikan ID-nya.
func createTask(t *testing.T, app *fiber.App, sessionToken, title, description string) int {
	t.Helper()
	resp := doJSON(t, app, "POST", "/tasks/new", map[string]string{
		"title":       title,
		"description": description,
	}, sessionToken)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create task: expected status 201 but got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	decodeBody(t, resp, &result)
	id, ok := result["id"].(float64)
	if !ok {
		t.Fatalf("Create task: no id in response: %v", result)
	}
	return int(id)
}

func countAssignments(t *testing.T, userID, taskID int) int {
	t.Helper()
	var count int
	err := config.DB.QueryRow(
		"SELECT COUNT(*) FROM task_assignments WHERE user_id = $1 AND task_id = $2",
		userID, taskID).Scan(&count)
	if err != nil {
		t.Fatalf("Error counting assignments: %v", err)
	}
	return count
}
