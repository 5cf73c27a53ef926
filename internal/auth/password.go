package auth

import "golang.org/x/crypto/bcrypt"

// dummyHash is a bcrypt hash of a throwaway value. Login attempts for
// unknown usernames are compared against it so the miss path costs the
// same as a real comparison.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// BurnPasswordCompare performs a comparison against the dummy hash and
// discards the result. Used to equalize timing when no credential exists.
func BurnPasswordCompare(plain string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
}
