package session

import (
	"encoding/json"
	"taskboard/internal/config"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CookieName adalah nama cookie yang menyimpan token session.
const CookieName = "session_id"

// Notice adalah pesan flash yang ditampilkan sekali di dashboard,
// meniru flash message ala web framework.
type Notice struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

func sessionKey(token string) string {
	return "session:" + token
}

func flashKey(token string) string {
	return "session:" + token + ":flash"
}

// Create membuat session baru di Redis untuk user yang berhasil login
// dan mengembalikan token opaque-nya.
func Create(userID int) (string, error) {
	token := uuid.NewString()
	err := config.RedisClient.Set(config.Ctx, sessionKey(token), userID, config.SessionTTL).Err()
	if err != nil {
		return "", err
	}
	return token, nil
}

// UserID mencari user ID dari token session.
// TTL diperpanjang setiap kali session dipakai (sliding expiry).
func UserID(token string) (int, error) {
	userID, err := config.RedisClient.Get(config.Ctx, sessionKey(token)).Int()
	if err != nil {
		return 0, err
	}
	config.RedisClient.Expire(config.Ctx, sessionKey(token), config.SessionTTL)
	config.RedisClient.Expire(config.Ctx, flashKey(token), config.SessionTTL)
	return userID, nil
}

// Destroy menghapus session dan flash notices-nya (logout).
func Destroy(token string) {
	config.RedisClient.Del(config.Ctx, sessionKey(token), flashKey(token))
}

// Flash menambahkan notice ke antrian flash milik session.
func Flash(token, message, category string) {
	data, err := json.Marshal(Notice{Message: message, Category: category})
	if err != nil {
		return
	}
	config.RedisClient.RPush(config.Ctx, flashKey(token), data)
	config.RedisClient.Expire(config.Ctx, flashKey(token), config.SessionTTL)
}

// PopNotices mengambil semua notice lalu mengosongkan antriannya,
// sehingga setiap notice hanya tampil satu kali.
func PopNotices(token string) []Notice {
	notices := []Notice{}
	items, err := config.RedisClient.LRange(config.Ctx, flashKey(token), 0, -1).Result()
	if err != nil {
		return notices
	}
	config.RedisClient.Del(config.Ctx, flashKey(token))
	for _, item := range items {
		var n Notice
		if err := json.Unmarshal([]byte(item), &n); err == nil {
			notices = append(notices, n)
		}
	}
	return notices
}

// SetCookie memasang cookie session di response.
func SetCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		HTTPOnly: true,
		Expires:  time.Now().Add(config.SessionTTL),
	})
}

// ClearCookie menghapus cookie session dari response.
func ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		HTTPOnly: true,
		Expires:  time.Now().Add(-time.Hour),
	})
}
