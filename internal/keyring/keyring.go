// Package keyring keeps the provider API keys in the system keychain, so a
// nurse's workstation does not need them in its environment.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/medannot/medannot/pkg/collections"
	"github.com/zalando/go-keyring"
)

const serviceName = "medannot"

// Key is one provider credential.
type Key struct {
	// Service is the name users type ("openai").
	Service string
	// Purpose is what MedAnnot uses the provider for.
	Purpose string
	// Env is the variable that overrides the keychain.
	Env string

	account string
}

var (
	OpenAI    = Key{Service: "openai", Purpose: "transcription", Env: "OPENAI_API_KEY", account: "openai-api-key"}
	Anthropic = Key{Service: "anthropic", Purpose: "annotation", Env: "ANTHROPIC_API_KEY", account: "anthropic-api-key"}
)

// Keys returns every key MedAnnot needs.
func Keys() []Key {
	return []Key{OpenAI, Anthropic}
}

// Lookup finds a key by service name.
func Lookup(service string) (Key, error) {
	k, ok := collections.Find(Keys(), func(k Key) bool {
		return k.Service == strings.ToLower(service)
	})
	if !ok {
		return Key{}, fmt.Errorf("unknown service: %s", service)
	}

	return k, nil
}

// Get reads the key from the keychain.
func (k Key) Get() (string, error) {
	value, err := keyring.Get(serviceName, k.account)
	if err != nil {
		return "", fmt.Errorf("failed to get %s key from keychain: %w", k.Service, err)
	}

	return value, nil
}

// Set stores the key in the keychain.
func (k Key) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("API key must not be empty")
	}

	if err := keyring.Set(serviceName, k.account, value); err != nil {
		return fmt.Errorf("failed to store %s key in keychain: %w", k.Service, err)
	}

	return nil
}

// Delete removes the key from the keychain. Deleting a missing key is not
// an error.
func (k Key) Delete() error {
	err := keyring.Delete(serviceName, k.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s key from keychain: %w", k.Service, err)
	}

	return nil
}

// Source says where a key resolves from.
type Source string

const (
	FromEnv      Source = "environment"
	FromKeychain Source = "keychain"
	Missing      Source = "missing"
)

// Resolve returns envValue when set, otherwise the keychain value, and
// where it came from. A missing key resolves to "" and is reported by the
// caller when it is first needed.
func (k Key) Resolve(envValue string) (string, Source) {
	if envValue != "" {
		return envValue, FromEnv
	}

	value, err := k.Get()
	if err != nil {
		return "", Missing
	}

	return value, FromKeychain
}
