// Package vault reads credentials from a Vault KV secret.
package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/spf13/cast"
)

// Client wraps the Vault API client.
type Client struct {
	client *api.Client
}

// NewClient creates a client for address and checks that the server is
// reachable and unsealed.
func NewClient(ctx context.Context, address, token string) (*Client, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	health, err := client.Sys().HealthWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Vault at %s: %w", address, err)
	}
	if health.Sealed {
		return nil, fmt.Errorf("vault at %s is sealed", address)
	}

	return &Client{client: client}, nil
}

// ReadSecrets returns the key/value pairs stored at path as strings. KV v2
// is tried first, then KV v1.
func (c *Client) ReadSecrets(ctx context.Context, path string) (map[string]string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, fmt.Errorf("vault path is empty")
	}

	data, err := c.readKVv2(ctx, path)
	if err != nil {
		v1, err1 := c.readKVv1(ctx, path)
		if err1 != nil {
			return nil, fmt.Errorf("%w (kv v2: %v)", err1, err)
		}
		data = v1
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("secret %s at %s is not a scalar: %w", k, path, err)
		}
		out[k] = s
	}
	return out, nil
}

// Keys returns the sorted secret names of a secret map.
func Keys(secrets map[string]string) []string {
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Client) readKVv1(ctx context.Context, path string) (map[string]interface{}, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from path %s: %w", path, err)
	}
	if secret == nil {
		return nil, fmt.Errorf("no secret found at path %s", path)
	}
	return secret.Data, nil
}

func (c *Client) readKVv2(ctx context.Context, path string) (map[string]interface{}, error) {
	mount, rest := splitMount(path)
	fullPath := fmt.Sprintf("%s/data/%s", mount, rest)

	secret, err := c.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from KV v2 path %s: %w", fullPath, err)
	}
	if secret == nil {
		return nil, fmt.Errorf("no secret found at KV v2 path %s", fullPath)
	}
	// KV v2 wraps the actual data in a "data" field
	if data, ok := secret.Data["data"].(map[string]interface{}); ok {
		return data, nil
	}
	return nil, fmt.Errorf("invalid KV v2 secret format at path %s", fullPath)
}

func splitMount(path string) (string, string) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
