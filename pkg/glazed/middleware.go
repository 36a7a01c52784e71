package glazed

import (
	"context"
	"fmt"
	"strings"
	"time"

	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	gmiddlewares "github.com/go-go-golems/glazed/pkg/cmds/middlewares"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/vault"
)

// SecretReader fetches the key/value pairs stored at a Vault path.
type SecretReader func(ctx context.Context, vs *layers.VaultSettings, path string) (map[string]string, error)

// ReadVaultSecrets resolves a token from the vault layer settings and reads path.
func ReadVaultSecrets(ctx context.Context, vs *layers.VaultSettings, path string) (map[string]string, error) {
	token, err := vault.ResolveToken(ctx, vs.TokenOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Vault token: %w", err)
	}
	client, err := vault.NewClient(ctx, vs.VaultAddr, token)
	if err != nil {
		return nil, err
	}
	return client.ReadSecrets(ctx, path)
}

// UpdateFromVault reads the Vault path named by the storage layer's
// credentials-vault-path parameter and overwrites every parameter, in any
// layer, whose name matches a secret key. It runs after the rest of the
// chain, so Vault values win over flags, config and defaults. Nothing happens
// when no path is configured.
//
// Typical usage:
//
//	middlewares.ExecuteMiddlewares(layers, parsed,
//	    glazed.UpdateFromVault(glazed.ReadVaultSecrets,
//	        parameters.WithParseStepSource("vault"),
//	    ),
//	    middlewares.SetFromDefaults(parameters.WithParseStepSource("defaults")),
//	)
func UpdateFromVault(read SecretReader, options ...parameters.ParseStepOption) gmiddlewares.Middleware {
	return func(next gmiddlewares.HandlerFunc) gmiddlewares.HandlerFunc {
		return func(ls *glayers.ParameterLayers, parsed *glayers.ParsedLayers) error {
			if err := next(ls, parsed); err != nil {
				return err
			}

			if _, ok := parsed.Get(layers.StorageSlug); !ok {
				return nil
			}
			ss, err := layers.GetStorageSettings(parsed)
			if err != nil {
				return err
			}
			path := strings.TrimSpace(ss.CredentialsVaultPath)
			if path == "" {
				return nil
			}
			vs, err := layers.GetVaultSettings(parsed)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			secrets, err := read(ctx, vs, path)
			if err != nil {
				return fmt.Errorf("failed to retrieve secrets from %s: %w", path, err)
			}

			updated := 0
			err = ls.ForEachE(func(_ string, l glayers.ParameterLayer) error {
				parsedLayer := parsed.GetOrCreate(l)
				pds := l.GetParameterDefinitions()
				return pds.ForEachE(func(pd *parameters.ParameterDefinition) error {
					v, ok := secrets[pd.Name]
					if !ok {
						return nil
					}
					updated++
					return parsedLayer.Parameters.UpdateValue(pd.Name, pd, v, options...)
				})
			})
			if err != nil {
				return err
			}
			log.Debug().Str("path", path).Int("parameters", updated).Strs("keys", vault.Keys(secrets)).Msg("Applied Vault secrets")
			return nil
		}
	}
}
