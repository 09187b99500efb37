package credentials

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// Sentinel errors
var (
	// ErrCredentialNotFound is returned when a credential doesn't exist.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrNoDefaultCredential is returned when no default is set.
	ErrNoDefaultCredential = errors.New("no default credential set")

	// ErrInvalidName is returned for names that are not safe file names.
	ErrInvalidName = errors.New("credential name must be 1-64 characters of letters, digits, '-' or '_'")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Credential is a saved admin API login. The token itself is kept in a
// separate file next to the config.
type Credential struct {
	Name        string    `json:"name"`
	ServerURL   string    `json:"server_url"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Config represents the credentials configuration file.
type Config struct {
	Version           int                   `json:"version"`
	DefaultCredential string                `json:"default_credential,omitempty"`
	Credentials       map[string]Credential `json:"credentials"`
}

// Store manages credential storage on the local filesystem.
type Store struct {
	baseDir string
}

// NewStore creates a new credential store.
// If baseDir is empty, uses ~/.peopleops/credentials/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".peopleops", "credentials")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	store := &Store{baseDir: baseDir}

	if err := store.ensureConfig(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("credential store initialized")

	return store, nil
}

// Save stores a token for serverURL under name, replacing any previous token.
// The first credential saved becomes the default.
func (s *Store) Save(name, serverURL, token string) (*Credential, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is required")
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred, exists := cfg.Credentials[name]
	if !exists {
		cred = Credential{Name: name, CreatedAt: now}
	}
	cred.ServerURL = serverURL
	cred.Fingerprint = Fingerprint(token)
	cred.UpdatedAt = now

	tokenPath := s.tokenPath(name)
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return nil, fmt.Errorf("failed to write token: %w", err)
	}

	cfg.Credentials[name] = cred
	if len(cfg.Credentials) == 1 {
		cfg.DefaultCredential = name
	}

	if err := s.saveConfig(cfg); err != nil {
		if !exists {
			os.Remove(tokenPath)
		}
		return nil, err
	}

	log.Debug().
		Str("name", name).
		Str("fingerprint", cred.Fingerprint).
		Msg("credential saved")

	return &cred, nil
}

// Get retrieves credential metadata by name.
func (s *Store) Get(name string) (*Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	cred, ok := cfg.Credentials[name]
	if !ok {
		return nil, ErrCredentialNotFound
	}

	return &cred, nil
}

// GetDefault retrieves the default credential.
// Returns ErrNoDefaultCredential if none is set.
func (s *Store) GetDefault() (*Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DefaultCredential == "" {
		return nil, ErrNoDefaultCredential
	}

	return s.Get(cfg.DefaultCredential)
}

// List returns all stored credentials.
func (s *Store) List() ([]Credential, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	credentials := make([]Credential, 0, len(cfg.Credentials))
	for _, cred := range cfg.Credentials {
		credentials = append(credentials, cred)
	}

	return credentials, nil
}

// Delete removes a credential and its token file.
func (s *Store) Delete(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Credentials[name]; !ok {
		return ErrCredentialNotFound
	}

	if err := os.Remove(s.tokenPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token: %w", err)
	}

	delete(cfg.Credentials, name)

	if cfg.DefaultCredential == name {
		cfg.DefaultCredential = ""
	}

	if err := s.saveConfig(cfg); err != nil {
		return err
	}

	log.Debug().Str("name", name).Msg("credential deleted")

	return nil
}

// SetDefault sets the default credential.
func (s *Store) SetDefault(name string) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Credentials[name]; !ok {
		return ErrCredentialNotFound
	}

	cfg.DefaultCredential = name

	return s.saveConfig(cfg)
}

// LoadToken returns the token saved for name.
func (s *Store) LoadToken(name string) (string, error) {
	if _, err := s.Get(name); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.tokenPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrCredentialNotFound
		}
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// Fingerprint identifies a token without revealing it (Base58-encoded SHA256).
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:])
}

func (s *Store) tokenPath(name string) string {
	return filepath.Join(s.baseDir, name+".token")
}

// ensureConfig creates an empty config if it doesn't exist.
func (s *Store) ensureConfig() error {
	configPath := filepath.Join(s.baseDir, "config.json")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	cfg := &Config{
		Version:     1,
		Credentials: make(map[string]Credential),
	}

	return s.saveConfig(cfg)
}

// loadConfig reads the config file.
func (s *Store) loadConfig() (*Config, error) {
	configPath := filepath.Join(s.baseDir, "config.json")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Credentials == nil {
		cfg.Credentials = make(map[string]Credential)
	}

	return &cfg, nil
}

// saveConfig writes the config file atomically.
func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(s.baseDir, "config.json")
	tempPath := configPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, configPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
