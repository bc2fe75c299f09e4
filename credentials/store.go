// Package credentials stores and supplies the Graph API access token.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Skryldev/adimage-uploader/config"
	"github.com/Skryldev/adimage-uploader/core"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

// EnvToken overrides the token file when set.
const EnvToken = "ADUPLOAD_ACCESS_TOKEN"

// TokenFile is the on-disk representation of a saved token.
type TokenFile struct {
	AccessToken string `json:"access_token"`
	Encrypted   bool   `json:"encrypted"`
	Timestamp   int64  `json:"timestamp"` // unix milliseconds
}

// SavedAt returns the timestamp as a time.Time.
func (t TokenFile) SavedAt() time.Time { return time.UnixMilli(t.Timestamp) }

// Source names where a credential came from.
type Source string

const (
	SourceEnv  Source = "env"
	SourceFile Source = "file"
	SourceNone Source = "none"
)

// Status describes the credential a run would use.
type Status struct {
	Source    Source
	Path      string
	Encrypted bool
	SavedAt   time.Time
	Expired   bool
}

// Store reads and writes the token file.  It implements
// core.CredentialProvider.
type Store struct {
	path      string
	encrypt   bool
	refresh   time.Duration
	machineID func() (string, error)
	getenv    func(string) string
	now       func() time.Time
	logger    core.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithMachineID replaces os.Hostname as the key source.
func WithMachineID(fn func() (string, error)) Option { return func(s *Store) { s.machineID = fn } }

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option { return func(s *Store) { s.now = fn } }

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option { return func(s *Store) { s.getenv = fn } }

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a Store configured from cfg.
func NewStore(cfg config.TokenConfig, opts ...Option) *Store {
	s := &Store{
		path:      cfg.File,
		encrypt:   cfg.Encrypt,
		refresh:   cfg.RefreshInterval,
		machineID: os.Hostname,
		getenv:    os.Getenv,
		now:       time.Now,
		logger:    core.NopLogger{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the token file location.
func (s *Store) Path() string { return s.path }

// Save writes token to the token file, encrypting it when configured.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.New(apperrors.KindCredential, "credentials.save", apperrors.ErrTokenMissing)
	}

	rec := TokenFile{AccessToken: token, Encrypted: s.encrypt, Timestamp: s.now().UnixMilli()}
	if s.encrypt {
		key, err := s.key()
		if err != nil {
			return apperrors.New(apperrors.KindCredential, "credentials.save", err)
		}
		if rec.AccessToken, err = Seal([]byte(token), key); err != nil {
			return apperrors.New(apperrors.KindCredential, "credentials.save", err)
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.KindCredential, "credentials.save", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return apperrors.New(apperrors.KindCredential, "credentials.save", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return apperrors.New(apperrors.KindCredential, "credentials.save", err)
	}
	s.logger.Info("token saved", "path", s.path, "encrypted", s.encrypt)
	return nil
}

// Load reads the token file and returns the plaintext token with its record.
func (s *Store) Load() (string, TokenFile, error) {
	var rec TokenFile
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", apperrors.ErrTokenMissing, s.path)
		}
		return "", rec, apperrors.New(apperrors.KindCredential, "credentials.load", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", rec, apperrors.New(apperrors.KindCredential, "credentials.load",
			fmt.Errorf("parse %s: %w", s.path, err))
	}

	token := rec.AccessToken
	if rec.Encrypted {
		key, err := s.key()
		if err != nil {
			return "", rec, apperrors.New(apperrors.KindCredential, "credentials.load", err)
		}
		plain, err := Open(rec.AccessToken, key)
		if err != nil {
			return "", rec, apperrors.New(apperrors.KindCredential, "credentials.load",
				fmt.Errorf("decrypt %s: %w", s.path, err))
		}
		token = string(plain)
	}
	if strings.TrimSpace(token) == "" {
		return "", rec, apperrors.New(apperrors.KindCredential, "credentials.load", apperrors.ErrTokenMissing)
	}
	return token, rec, nil
}

// Credential implements core.CredentialProvider.  The environment variable
// wins over the file.  An expired token is still returned; the API has the
// final word on validity.
func (s *Store) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.New(apperrors.KindCredential, "credentials.get", err)
	}
	if tok := strings.TrimSpace(s.getenv(EnvToken)); tok != "" {
		return tok, nil
	}
	token, rec, err := s.Load()
	if err != nil {
		return "", err
	}
	if s.IsExpired(rec) {
		s.logger.Warn("access token is older than the refresh interval",
			"saved_at", rec.SavedAt().Format(time.RFC3339),
			"refresh_interval", s.refresh.String())
	}
	return token, nil
}

// IsExpired reports whether rec is older than the refresh interval.  A zero
// interval disables expiry.
func (s *Store) IsExpired(rec TokenFile) bool {
	if s.refresh <= 0 {
		return false
	}
	return s.now().Sub(rec.SavedAt()) > s.refresh
}

// Status describes the credential that Credential would return, without
// decrypting it.
func (s *Store) Status() (Status, error) {
	if strings.TrimSpace(s.getenv(EnvToken)) != "" {
		return Status{Source: SourceEnv}, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Status{Source: SourceNone, Path: s.path}, nil
	}
	if err != nil {
		return Status{}, apperrors.New(apperrors.KindCredential, "credentials.status", err)
	}
	var rec TokenFile
	if err := json.Unmarshal(data, &rec); err != nil {
		return Status{}, apperrors.New(apperrors.KindCredential, "credentials.status", err)
	}
	return Status{
		Source:    SourceFile,
		Path:      s.path,
		Encrypted: rec.Encrypted,
		SavedAt:   rec.SavedAt(),
		Expired:   s.IsExpired(rec),
	}, nil
}

func (s *Store) key() ([]byte, error) {
	id, err := s.machineID()
	if err != nil {
		return nil, fmt.Errorf("machine id: %w", err)
	}
	return DeriveKey(id), nil
}
