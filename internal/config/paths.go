package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// projectConfigFile is picked up from the working directory when no file
// exists at the default location.
const projectConfigFile = "landing.toml"

// DefaultConfigPath is ~/.config/landing/config.toml, expanded.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home directory: %w", err)
		}
		p = home + strings.TrimPrefix(p, "~")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// resolveConfigPath picks the file Load should read. An explicit path is used
// whether or not it exists; otherwise the default location wins over
// ./landing.toml, and the default path is reported when neither exists.
func resolveConfigPath(explicit string) (string, bool, error) {
	if explicit != "" {
		path, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(path)
		return path, exists, err
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := expandPath(projectConfigFile)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat %s: %w", path, err)
	default:
		return !info.IsDir(), nil
	}
}

// loadDotEnv applies .env from the config directory, then from the working
// directory. godotenv never overrides variables that are already set, so the
// first file to define a key wins and the real environment beats both.
func loadDotEnv(configDir string) error {
	var files []string
	if configDir != "" && configDir != "." {
		files = append(files, filepath.Join(configDir, ".env"))
	}
	files = append(files, ".env")
	for _, file := range files {
		if ok, _ := isFile(file); !ok {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// CreateSample writes the commented sample config, creating parent
// directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
