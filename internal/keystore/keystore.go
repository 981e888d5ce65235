// Package keystore persists the bearer key that guards the HTTP API.
package keystore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/NinoCoelho/WhatsAppBridge/internal/models"
)

var ErrEmptyKey = errors.New("key file is empty")

// GetOrCreate returns the key stored at path, generating and writing a new
// one with owner-only permissions when the file is missing or blank.
func GetOrCreate(path string) (key string, created bool, err error) {
	key, err = Read(path)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ErrEmptyKey) {
		return "", false, err
	}

	key, err = models.NewAuthKey()
	if err != nil {
		return "", false, fmt.Errorf("generate key: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", false, fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(key), 0o600); err != nil {
		return "", false, fmt.Errorf("write key file: %w", err)
	}
	return key, true, nil
}

func Read(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyKey)
	}
	return key, nil
}
