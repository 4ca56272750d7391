// Package vault is the credential store: per-user exchange API keys kept
// in HashiCorp Vault (KV v2), with an encrypted local file fallback for
// deployments without a Vault server. Fails closed: any decrypt or
// lookup failure surfaces as not-configured, never as empty credentials.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"smc-trading-bot/config"
)

// ErrNotConfigured means no usable credentials exist for the user. The
// caller treats this as a configuration error: execution is blocked,
// analysis is not.
var ErrNotConfigured = errors.New("exchange credentials not configured")

// Credentials is a decrypted API key/secret pair.
type Credentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Client wraps the HashiCorp Vault client with a read cache and the
// local-file fallback.
type Client struct {
	client *api.Client
	config config.VaultConfig
	local  *localStore

	mu    sync.RWMutex
	cache map[string]*Credentials
}

// NewClient creates the credential store. With Vault disabled, reads and
// writes go to the encrypted local file instead.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	c := &Client{
		config: cfg,
		cache:  make(map[string]*Credentials),
	}

	if !cfg.Enabled {
		if cfg.LocalPath == "" || cfg.LocalPassphrase == "" {
			// No backend at all; every lookup fails closed.
			return c, nil
		}
		local, err := newLocalStore(cfg.LocalPath, cfg.LocalPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to open local credential store: %w", err)
		}
		c.local = local
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	c.client = client

	return c, nil
}

// GetCredentials returns the user's decrypted exchange credentials.
// Missing, partial or undecryptable entries all yield ErrNotConfigured.
func (c *Client) GetCredentials(ctx context.Context, userID string) (*Credentials, error) {
	c.mu.RLock()
	if cached, ok := c.cache[userID]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	var creds *Credentials
	var err error
	if c.config.Enabled {
		creds, err = c.readVault(ctx, userID)
	} else {
		creds, err = c.readLocal(userID)
	}
	if err != nil {
		return nil, err
	}

	if creds.APIKey == "" || creds.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	c.mu.Lock()
	c.cache[userID] = creds
	c.mu.Unlock()
	return creds, nil
}

// StoreCredentials writes the user's credentials to the active backend.
func (c *Client) StoreCredentials(ctx context.Context, userID string, creds Credentials) error {
	if c.config.Enabled {
		data := map[string]interface{}{
			"data": map[string]interface{}{
				"api_key":    creds.APIKey,
				"secret_key": creds.SecretKey,
			},
		}
		if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(userID), data); err != nil {
			return fmt.Errorf("failed to store credentials in vault: %w", err)
		}
	} else {
		if c.local == nil {
			return ErrNotConfigured
		}
		if err := c.local.put(userID, creds); err != nil {
			return fmt.Errorf("failed to store credentials locally: %w", err)
		}
	}

	c.mu.Lock()
	stored := creds
	c.cache[userID] = &stored
	c.mu.Unlock()
	return nil
}

// DeleteCredentials removes the user's credentials and cache entry.
func (c *Client) DeleteCredentials(ctx context.Context, userID string) error {
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()

	if c.config.Enabled {
		if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(userID)); err != nil {
			return fmt.Errorf("failed to delete credentials from vault: %w", err)
		}
		return nil
	}
	if c.local != nil {
		return c.local.delete(userID)
	}
	return nil
}

// InvalidateCache drops the cached credentials for a user, forcing the
// next read through to the backend.
func (c *Client) InvalidateCache(userID string) {
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()
}

// Health checks the Vault connection. A disabled Vault is healthy.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) readVault(ctx context.Context, userID string) (*Credentials, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotConfigured
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, ErrNotConfigured
	}

	return &Credentials{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
	}, nil
}

func (c *Client) readLocal(userID string) (*Credentials, error) {
	if c.local == nil {
		return nil, ErrNotConfigured
	}
	return c.local.get(userID)
}

// KV v2 data path: {mount}/data/{secretPath}/{userID}/binance
func (c *Client) secretPath(userID string) string {
	return fmt.Sprintf("%s/data/%s/%s/binance", c.config.MountPath, c.config.SecretPath, userID)
}

func (c *Client) metadataPath(userID string) string {
	return fmt.Sprintf("%s/metadata/%s/%s/binance", c.config.MountPath, c.config.SecretPath, userID)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
