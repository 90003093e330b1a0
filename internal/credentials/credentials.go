// Package credentials keeps the Porkbun API keys in the OS keychain.
package credentials

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// ServiceName is the keychain service the keys are stored under.
const ServiceName = "porkbun-ddns"

const (
	APIKey    = "apikey"
	SecretKey = "secretapikey"
)

var ErrNotFound = errors.New("credential not found")

type Store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// DefaultStore returns the store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

type KeyringStore struct {
	serviceName string
}

func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

func (k *KeyringStore) Set(key, value string) error {
	return keyring.Set(k.serviceName, key, value)
}

func (k *KeyringStore) Get(key string) (string, error) {
	value, err := keyring.Get(k.serviceName, key)
	if err == nil {
		return value, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return "", err
}

func (k *KeyringStore) Delete(key string) error {
	err := keyring.Delete(k.serviceName, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
