package secrets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/resilience"
)

type MockSecretGetter struct {
	mock.Mock
}

func (m *MockSecretGetter) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	args := m.Called(ctx, name, version)
	return args.Get(0).(azsecrets.GetSecretResponse), args.Error(1)
}

func secretResponse(value string) azsecrets.GetSecretResponse {
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &value}}
}

func responseError(status int, code string) error {
	return &azcore.ResponseError{
		ErrorCode:  code,
		StatusCode: status,
		RawResponse: &http.Response{
			StatusCode: status,
			Request:    httptest.NewRequest(http.MethodGet, "https://vault.example/secrets/x", nil),
		},
	}
}

func newTestInvoker(t *testing.T, retries int) *resilience.Invoker {
	t.Helper()

	inv, err := resilience.NewInvoker(
		resilience.Policy{MaxAttempts: retries, BaseDelay: time.Millisecond},
		zap.NewNop(),
		resilience.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, err)

	return inv
}

func TestKeyVaultConfig_Credential(t *testing.T) {
	tests := []struct {
		name string
		cfg  KeyVaultConfig
		want CredentialKind
	}{
		{"no url", KeyVaultConfig{TenantID: "t", ClientID: "c", ClientSecret: "s"}, CredentialNone},
		{"service principal", KeyVaultConfig{URL: "https://v.vault.azure.net", TenantID: "t", ClientID: "c", ClientSecret: "s"}, CredentialClientSecret},
		{"managed identity", KeyVaultConfig{URL: "https://v.vault.azure.net"}, CredentialDefault},
		{"partial principal falls back to default", KeyVaultConfig{URL: "https://v.vault.azure.net", TenantID: "t", ClientID: "c"}, CredentialDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Credential())
		})
	}
}

func TestNewKeyVaultProvider_Disabled(t *testing.T) {
	_, err := NewKeyVaultProvider(KeyVaultConfig{}, newTestInvoker(t, 0), zap.NewNop())
	assert.ErrorIs(t, err, ErrVaultDisabled)
}

func TestKeyVaultProvider_GetSecret(t *testing.T) {
	client := new(MockSecretGetter)
	client.On("GetSecret", mock.Anything, "openweather-api-key", "").Return(secretResponse("abc123"), nil)

	p := newKeyVaultProvider(client, newTestInvoker(t, 2), zap.NewNop())

	value, err := p.GetSecret(context.Background(), "openweather-api-key")
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)
	client.AssertNumberOfCalls(t, "GetSecret", 1)
}

func TestKeyVaultProvider_Failures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		response  azsecrets.GetSecretResponse
		wantCalls int
		notFound  bool
	}{
		{"missing secret is not retried", responseError(http.StatusNotFound, "SecretNotFound"), azsecrets.GetSecretResponse{}, 1, true},
		{"forbidden is not retried", responseError(http.StatusForbidden, "Forbidden"), azsecrets.GetSecretResponse{}, 1, false},
		{"throttling is retried", responseError(http.StatusTooManyRequests, "Throttled"), azsecrets.GetSecretResponse{}, 3, false},
		{"nil value", nil, azsecrets.GetSecretResponse{}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockSecretGetter)
			client.On("GetSecret", mock.Anything, "db-password", "").Return(tt.response, tt.err)

			p := newKeyVaultProvider(client, newTestInvoker(t, 2), zap.NewNop())

			_, err := p.GetSecret(context.Background(), "db-password")
			require.Error(t, err)

			assert.Equal(t, tt.notFound, errors.Is(err, ErrSecretNotFound))
			client.AssertNumberOfCalls(t, "GetSecret", tt.wantCalls)
		})
	}
}

func TestKeyVaultProvider_ThrottledThenOK(t *testing.T) {
	client := new(MockSecretGetter)
	client.On("GetSecret", mock.Anything, "redis-password", "").
		Return(azsecrets.GetSecretResponse{}, responseError(http.StatusServiceUnavailable, "ServiceUnavailable")).Once()
	client.On("GetSecret", mock.Anything, "redis-password", "").
		Return(secretResponse("s3cret"), nil).Once()

	p := newKeyVaultProvider(client, newTestInvoker(t, 2), zap.NewNop())

	value, err := p.GetSecret(context.Background(), "redis-password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)
	client.AssertExpectations(t)
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("CITY_WEATHER_TEST_SECRET", "value")
	t.Setenv("CITY_WEATHER_TEST_EMPTY", "")

	p := NewEnvProvider()

	value, err := p.GetSecret(context.Background(), "CITY_WEATHER_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	value, err = p.GetSecret(context.Background(), "city-weather-test-secret")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	_, err = p.GetSecret(context.Background(), "CITY_WEATHER_TEST_EMPTY")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = p.GetSecret(context.Background(), "CITY_WEATHER_TEST_UNSET")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}
