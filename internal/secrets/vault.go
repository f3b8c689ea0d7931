// Package secrets integrates with HashiCorp Vault for credential management,
// adapted from common/security/VaultClient.go in the teacher repo, narrowed
// to the handful of secrets this engine holds (database URL, provider API
// keys) instead of a generic rotating bundle.
package secrets

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// Client reads secrets from a Vault KV v2 mount.
type Client struct {
	vault  *api.Client
	mount  string
	path   string
	logger *zap.Logger
}

// New builds a Client against the given Vault address. mount/path identify
// the KV v2 secret (e.g. mount "secret", path "tariffengine").
func New(address, mount, path string, logger *zap.Logger) (*Client, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address
	vc, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: vault client: %w", err)
	}
	return &Client{vault: vc, mount: mount, path: path, logger: logger}, nil
}

// Bundle is the subset of config material this engine keeps in Vault rather
// than plain environment variables.
type Bundle struct {
	DatabaseURL   string
	EUTaricAPIKey string
	VATAPIKey     string
	JWTSecret     string
}

// Fetch reads the current secret bundle. A missing key in the Vault response
// leaves the corresponding Bundle field empty, so callers fall back to
// whatever they already loaded from the environment.
func (c *Client) Fetch(ctx context.Context) (Bundle, error) {
	secret, err := c.vault.Logical().ReadWithContext(ctx, fmt.Sprintf("%s/data/%s", c.mount, c.path))
	if err != nil {
		if c.logger != nil {
			c.logger.Error("secrets: failed to read vault secret", zap.Error(err))
		}
		return Bundle{}, err
	}
	if secret == nil || secret.Data == nil {
		return Bundle{}, nil
	}
	data, _ := secret.Data["data"].(map[string]interface{})
	if data == nil {
		data = secret.Data
	}
	bundle := Bundle{
		DatabaseURL:   stringValue(data, "database_url"),
		EUTaricAPIKey: stringValue(data, "eu_taric_api_key"),
		VATAPIKey:     stringValue(data, "vat_api_key"),
		JWTSecret:     stringValue(data, "jwt_secret"),
	}
	if c.logger != nil {
		c.logger.Info("secrets: bundle refreshed")
	}
	return bundle, nil
}

func stringValue(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
