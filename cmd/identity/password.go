package identity

import (
	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/security/password"
)

// HashPassword returns a PHC-style Argon2id hash string using the env-driven
// security/password configuration.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return "", err
	}
	return cfg.Hash(plain)
}
