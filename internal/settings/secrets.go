package settings

import (
	"errors"

	"github.com/zalando/go-keyring"
)

var ErrSecretNotFound = errors.New("settings: secret not found")

type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Keyring stores secrets in the OS credential store under one service name.
type Keyring struct {
	Service string
}

func NewKeyring(service string) *Keyring {
	return &Keyring{Service: service}
}

func (k *Keyring) Get(key string) (string, error) {
	v, err := keyring.Get(k.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	return v, err
}

func (k *Keyring) Set(key, value string) error {
	return keyring.Set(k.Service, key, value)
}

func (k *Keyring) Delete(key string) error {
	err := keyring.Delete(k.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrSecretNotFound
	}
	return err
}
