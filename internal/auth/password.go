package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword creates a bcrypt hash from the given plaintext password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword checks if the provided plaintext password matches the stored bcrypt hash.
func VerifyPassword(hashed, provided string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(provided))
}
