package secretmanager

import (
	"errors"
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when VAULT_ADDR is missing from the environment.
var ErrNotConfigured = errors.New("secretmanager: VAULT_ADDR is not set")

// Module provides the vault client config.RemoteModule reads billing secrets through.
var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// ProvideVault builds a client from VAULT_ADDR and VAULT_TOKEN.
func ProvideVault() (*vault.Client, error) {
	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		return nil, ErrNotConfigured
	}

	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		zap.L().Error("failed to create vault client", zap.String("addr", addr), zap.Error(err))
		return nil, err
	}

	zap.L().Info("vault client configured", zap.String("addr", addr))
	return client, nil
}
