package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/resilience"
)

// ErrVaultDisabled is returned by NewKeyVaultProvider when no vault URL is
// configured.
var ErrVaultDisabled = errors.New("key vault not configured")

// KeyVaultConfig identifies the vault and, optionally, a service principal.
type KeyVaultConfig struct {
	URL          string
	TenantID     string
	ClientID     string
	ClientSecret string
}

// CredentialKind is the credential chosen for a KeyVaultConfig.
type CredentialKind int

const (
	// CredentialNone means no vault is used.
	CredentialNone CredentialKind = iota
	// CredentialClientSecret authenticates as a service principal.
	CredentialClientSecret
	// CredentialDefault uses the default Azure chain (managed identity,
	// workload identity, Azure CLI).
	CredentialDefault
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialClientSecret:
		return "client-secret"
	case CredentialDefault:
		return "default"
	default:
		return "none"
	}
}

// Credential picks the credential: none without a URL, a client secret
// credential when tenant, client id and secret are all set, otherwise the
// default chain.
func (c KeyVaultConfig) Credential() CredentialKind {
	switch {
	case c.URL == "":
		return CredentialNone
	case c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "":
		return CredentialClientSecret
	default:
		return CredentialDefault
	}
}

func newCredential(cfg KeyVaultConfig) (azcore.TokenCredential, error) {
	switch cfg.Credential() {
	case CredentialClientSecret:
		cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client secret credential: %w", err)
		}

		return cred, nil
	case CredentialDefault:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure default credential: %w", err)
		}

		return cred, nil
	default:
		return nil, ErrVaultDisabled
	}
}

// secretGetter is the part of *azsecrets.Client used here.
type secretGetter interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// KeyVaultProvider reads the latest version of secrets from Azure Key Vault.
type KeyVaultProvider struct {
	client  secretGetter
	invoker *resilience.Invoker
	logger  *zap.Logger
}

// NewKeyVaultProvider connects to the vault in cfg. Retries are done by
// invoker, so the SDK's own retry policy is switched off.
//
// Returns:
//   - *KeyVaultProvider: Provider for the vault
//   - error: ErrVaultDisabled without a URL, or a credential/client error
func NewKeyVaultProvider(cfg KeyVaultConfig, invoker *resilience.Invoker, logger *zap.Logger) (*KeyVaultProvider, error) {
	cred, err := newCredential(cfg)
	if err != nil {
		return nil, err
	}

	client, err := azsecrets.NewClient(cfg.URL, cred, &azsecrets.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	logger.Info("using Azure Key Vault for secrets",
		zap.String("url", cfg.URL),
		zap.Stringer("credential", cfg.Credential()))

	return newKeyVaultProvider(client, invoker, logger), nil
}

func newKeyVaultProvider(client secretGetter, invoker *resilience.Invoker, logger *zap.Logger) *KeyVaultProvider {
	return &KeyVaultProvider{
		client:  client,
		invoker: invoker,
		logger:  logger,
	}
}

// GetSecret fetches the current value of a secret. Throttling and server
// errors are retried; a missing secret is not.
func (p *KeyVaultProvider) GetSecret(ctx context.Context, name string) (string, error) {
	var value string

	err := p.invoker.Do(ctx, "keyvault.get-secret", func(ctx context.Context) error {
		resp, err := p.client.GetSecret(ctx, name, "", nil)
		if err != nil {
			return classifyVaultError(err)
		}

		if resp.Value == nil {
			return backoff.Permanent(ErrSecretNotFound)
		}

		value = *resp.Value

		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			p.logger.Error("failed to read secret", zap.String("name", name), zap.Error(err))
		}

		return "", fmt.Errorf("key vault secret %q: %w", name, err)
	}

	return value, nil
}

// classifyVaultError turns an SDK response error into something Classify
// understands.
func classifyVaultError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}

	if respErr.StatusCode == http.StatusNotFound {
		return backoff.Permanent(ErrSecretNotFound)
	}

	return fmt.Errorf("%s: %w", respErr.ErrorCode, &resilience.StatusError{
		StatusCode: respErr.StatusCode,
		Status:     fmt.Sprintf("%d %s", respErr.StatusCode, http.StatusText(respErr.StatusCode)),
	})
}
