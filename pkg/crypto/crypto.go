package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword meng-hash password plaintext dengan bcrypt.
// Setiap pemanggilan menghasilkan salt baru, jadi hash untuk
// plaintext yang sama tidak akan pernah identik.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword mengecek apakah plaintext cocok dengan hash yang tersimpan.
// Mengembalikan false untuk hash yang tidak valid, tidak pernah panic.
func VerifyPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
