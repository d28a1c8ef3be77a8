// Package envstore persists relay settings in a dotenv file. It is the settings store used when no
// database is configured.
package envstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// keyPrefix keeps stored settings apart from process configuration variables.
const keyPrefix = "RELAY_"

// Store keeps settings as JSON values in a dotenv file. Writes rewrite the whole file.
type Store struct {
	path   string
	logger *zerolog.Logger

	mu sync.Mutex
}

func New(path string, logger *zerolog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// EnvName maps a setting key to its variable name.
func EnvName(key string) string {
	return keyPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func (s *Store) read() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("reading settings file %s: %w", s.path, err)
	}

	return values, nil
}

// GetSetting decodes the stored value of key into target. A missing key leaves target untouched.
func (s *Store) GetSetting(_ context.Context, key string, target interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}

	raw, ok := values[EnvName(key)]
	if !ok {
		return nil
	}

	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("failed to unmarshal setting %s: %w", key, err)
	}

	return nil
}

// SaveSettingWithHistory stores value under key. The file keeps no history; changedBy is logged.
func (s *Store) SaveSettingWithHistory(_ context.Context, key string, value interface{}, changedBy int64) error {
	val, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}

	values[EnvName(key)] = string(val)

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating settings dir: %w", err)
		}
	}

	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("writing settings file %s: %w", s.path, err)
	}

	if changedBy != 0 {
		s.logger.Info().Str("key", key).Int64("changed_by", changedBy).Msg("setting saved to env file")
	}

	return nil
}
