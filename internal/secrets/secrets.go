// Package secrets reads credentials from Azure Key Vault or the process
// environment.
package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when the provider has no value for a name.
var ErrSecretNotFound = errors.New("secret not found")

// Provider resolves secrets by name.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvProvider reads secrets from environment variables. A secret name is
// upper-cased with dashes turned into underscores, so "db-password" reads
// DB_PASSWORD.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider backed by os.LookupEnv.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// GetSecret returns ErrSecretNotFound for unset or empty variables.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	value, ok := p.lookup(envName(name))
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}

	return value, nil
}

func envName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
