package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/xssweep/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".xssweep"

// LoadConfigFile loads site configurations from a YAML file.
// It returns ErrConfigNotFound when the file does not exist.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .xssweep in the current directory
// 3. Look for .xssweep in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}
	return ""
}

// LoadCookieFile reads a browser cookie export: a JSON object or a list of
// objects, each with at least a name.
func LoadCookieFile(path string) ([]model.Cookie, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided cookie path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	data = bytes.TrimSpace(data)

	var cookies []model.Cookie
	switch {
	case bytes.HasPrefix(data, []byte("[")):
		if err := json.Unmarshal(data, &cookies); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCookieFile, path, err)
		}
	case bytes.HasPrefix(data, []byte("{")):
		var c model.Cookie
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCookieFile, path, err)
		}
		cookies = []model.Cookie{c}
	default:
		return nil, fmt.Errorf("%w: %s: expected a JSON object or list", ErrInvalidCookieFile, path)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: %s: no cookies", ErrInvalidCookieFile, path)
	}
	for i, c := range cookies {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: %s: cookie %d has no name", ErrInvalidCookieFile, path, i)
		}
	}
	return cookies, nil
}

// LoadListFile reads comma-separated words. Whitespace and newlines are
// stripped and empty words dropped.
func LoadListFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read list file: %w", err)
	}

	stripped := strings.Join(strings.Fields(string(data)), "")
	words := make([]string, 0)
	for w := range strings.SplitSeq(stripped, ",") {
		if w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyListFile, path)
	}
	return words, nil
}
