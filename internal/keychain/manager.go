// Copyright (c) 2025 Powerexec
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain keeps powerexec secrets in the OS credential store: the
// host DSN and the passwords of profiles used with --become-user.
package keychain

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

var (
	globalManager *Manager
	mu            sync.Mutex
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("secret not found in keychain")

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "powerexec"

// Keys used for storing secrets in the OS keychain.
const (
	KeyDBDSN = "db_dsn"
	// keyBecomePrefix is followed by the upper-cased user profile name.
	keyBecomePrefix = "become_password:"
)

// Manager provides thread-safe operations on the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	backend backend
}

// backend is one credential store.
type backend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// NewManager opens the native credential store of the platform.
func NewManager() (*Manager, error) {
	if runtime.GOOS == "darwin" {
		if b, err := newSecurityBackend(); err == nil {
			return &Manager{backend: b}, nil
		}
	}
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithRing(ring), nil
}

// NewWithRing wraps an already opened keyring, such as keyring.NewArrayKeyring.
func NewWithRing(ring keyring.Keyring) *Manager {
	return &Manager{backend: ringBackend{ring: ring}}
}

// GetManager returns the process-wide Manager, retrying initialization on
// each call until it succeeds.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return m, nil
}

func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on " + runtime.GOOS)
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. Install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

// SaveDBDSN stores the host DSN.
func (m *Manager) SaveDBDSN(dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Set(KeyDBDSN, dsn)
}

// LoadDBDSN returns the stored DSN or ErrNotFound.
func (m *Manager) LoadDBDSN() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend.Get(KeyDBDSN)
}

// ClearDB removes the stored DSN.
func (m *Manager) ClearDB() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Delete(KeyDBDSN)
}

func becomeKey(user string) string {
	return keyBecomePrefix + strings.ToUpper(strings.TrimSpace(user))
}

// SaveBecomePassword stores the password of a user profile.
func (m *Manager) SaveBecomePassword(user, password string) error {
	if strings.TrimSpace(user) == "" {
		return errors.New("user profile name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Set(becomeKey(user), password)
}

// LoadBecomePassword returns the stored password of a user profile or
// ErrNotFound.
func (m *Manager) LoadBecomePassword(user string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend.Get(becomeKey(user))
}

// ClearBecomePassword removes the stored password of a user profile.
func (m *Manager) ClearBecomePassword(user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.Delete(becomeKey(user))
}

// ringBackend stores secrets through github.com/99designs/keyring.
type ringBackend struct {
	ring keyring.Keyring
}

func (r ringBackend) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (r ringBackend) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

func (r ringBackend) Delete(key string) error {
	if err := r.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
