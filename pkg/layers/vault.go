package layers

import (
	"fmt"

	glzcms "github.com/go-go-golems/glazed/pkg/cmds"
	glzlayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"

	"github.com/go-go-golems/batch-validator/pkg/vault"
)

const VaultSlug = "vault"

type VaultSettings struct {
	VaultAddr        string `glazed.parameter:"vault-addr"`
	VaultToken       string `glazed.parameter:"vault-token"`
	VaultTokenSource string `glazed.parameter:"vault-token-source"`
	VaultTokenFile   string `glazed.parameter:"vault-token-file"`
}

// TokenOptions converts the settings for vault.ResolveToken.
func (s *VaultSettings) TokenOptions() vault.TokenOptions {
	return vault.TokenOptions{
		Token:  s.VaultToken,
		Source: vault.TokenSource(s.VaultTokenSource),
		File:   s.VaultTokenFile,
	}
}

// NewVaultLayer holds the connection used to fetch storage credentials.
func NewVaultLayer() (glzlayers.ParameterLayer, error) {
	return glzlayers.NewParameterLayer(
		VaultSlug,
		"Vault connection settings",
		glzlayers.WithParameterDefinitions(
			parameters.NewParameterDefinition(
				"vault-addr",
				parameters.ParameterTypeString,
				parameters.WithHelp("Vault server address"),
				parameters.WithDefault("http://127.0.0.1:8200"),
			),
			parameters.NewParameterDefinition(
				"vault-token",
				parameters.ParameterTypeString,
				parameters.WithHelp("Vault token (optional)"),
				parameters.WithDefault(""),
			),
			parameters.NewParameterDefinition(
				"vault-token-source",
				parameters.ParameterTypeChoice,
				parameters.WithHelp("Token source: auto|env|file|lookup"),
				parameters.WithDefault(string(vault.TokenSourceAuto)),
				parameters.WithChoices(vault.TokenSources()...),
			),
			parameters.NewParameterDefinition(
				"vault-token-file",
				parameters.ParameterTypeString,
				parameters.WithHelp("Path to token file (default ~/.vault-token)"),
				parameters.WithDefault(""),
			),
		),
	)
}

func AddVaultLayerToCommand(c glzcms.Command) (glzcms.Command, error) {
	l, err := NewVaultLayer()
	if err != nil {
		return nil, err
	}
	c.Description().Layers.Set(VaultSlug, l)
	return c, nil
}

func GetVaultSettings(parsed *glzlayers.ParsedLayers) (*VaultSettings, error) {
	var s VaultSettings
	if err := parsed.InitializeStruct(VaultSlug, &s); err != nil {
		return nil, fmt.Errorf("failed to parse vault settings: %w", err)
	}
	return &s, nil
}
