// Package secret manages the bearer token that guards the daemon's RPC
// endpoints. The token lives in the OS keyring when one is available and
// in a 0600 file under the config directory otherwise.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/pkg/logger"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service the token is stored under.
	ServiceName = "asyncload"
	// TokenField is the keyring user field.
	TokenField = "rpc-token"

	tokenBytes = 32
)

// ErrNotFound is returned when a store holds no token.
var ErrNotFound = errors.New("secret: token not found")

// Store persists a single token.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Delete() error
}

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
	randRead      = rand.Read
)

// KeyringStore keeps the token in the OS keyring.
type KeyringStore struct {
	Service string
	User    string
}

// NewKeyringStore returns a KeyringStore for the default service and field.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: ServiceName, User: TokenField}
}

func (k *KeyringStore) Get() (string, error) {
	tok, err := keyringGet(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return tok, err
}

func (k *KeyringStore) Set(token string) error {
	return keyringSet(k.Service, k.User, token)
}

func (k *KeyringStore) Delete() error {
	err := keyringDelete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Generate returns a new random hex token.
func Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Resolve returns the token the daemon should require. An explicit value
// (the ASYNCLOAD_SECRET environment variable, then configured) wins.
// Otherwise the token is read from the keyring, then from the file store in
// dir, and generated and saved on first use. The keyring is skipped when it
// fails, with a warning.
func Resolve(configured, dir string, l logger.Logger) (string, error) {
	if tok := os.Getenv(common.SecretEnv); tok != "" {
		return tok, nil
	}
	if configured != "" {
		return configured, nil
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	stores := []Store{NewKeyringStore(), NewFileStore(dir)}
	var usable []Store
	for _, st := range stores {
		tok, err := st.Get()
		if err == nil && tok != "" {
			return tok, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			l.Warning("secret: %T unavailable: %v", st, err)
			continue
		}
		usable = append(usable, st)
	}
	tok, err := Generate()
	if err != nil {
		return "", err
	}
	for _, st := range usable {
		if err := st.Set(tok); err != nil {
			l.Warning("secret: %T: save token: %v", st, err)
			continue
		}
		return tok, nil
	}
	return "", errors.New("secret: no writable token store")
}

// Lookup returns the stored token without generating one. Clients use it
// to find the daemon's token.
func Lookup(dir string) (string, error) {
	if tok := os.Getenv(common.SecretEnv); tok != "" {
		return tok, nil
	}
	for _, st := range []Store{NewKeyringStore(), NewFileStore(dir)} {
		if tok, err := st.Get(); err == nil && tok != "" {
			return tok, nil
		}
	}
	return "", ErrNotFound
}
