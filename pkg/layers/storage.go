// Package layers defines the glazed parameter layers shared by the commands.
package layers

import (
	"fmt"

	glzcms "github.com/go-go-golems/glazed/pkg/cmds"
	glzlayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
)

const StorageSlug = "storage"

const (
	BackendAzure = "azure"
	BackendFS    = "fs"
)

type StorageSettings struct {
	Backend              string `glazed.parameter:"storage-backend"`
	ConnectionString     string `glazed.parameter:"storage-connection-string"`
	Container            string `glazed.parameter:"storage-container"`
	RootPath             string `glazed.parameter:"storage-root-path"`
	FSBaseDir            string `glazed.parameter:"fs-base-dir"`
	CredentialsVaultPath string `glazed.parameter:"credentials-vault-path"`
}

func NewStorageLayer() (glzlayers.ParameterLayer, error) {
	return glzlayers.NewParameterLayer(
		StorageSlug,
		"Object store settings",
		glzlayers.WithParameterDefinitions(
			parameters.NewParameterDefinition(
				"storage-backend",
				parameters.ParameterTypeChoice,
				parameters.WithHelp("Object store backend"),
				parameters.WithChoices(BackendAzure, BackendFS),
				parameters.WithDefault(BackendAzure),
			),
			parameters.NewParameterDefinition(
				"storage-connection-string",
				parameters.ParameterTypeString,
				parameters.WithHelp("Azure storage account connection string"),
				parameters.WithDefault(""),
			),
			parameters.NewParameterDefinition(
				"storage-container",
				parameters.ParameterTypeString,
				parameters.WithHelp("Container holding the batches"),
				parameters.WithDefault(""),
			),
			parameters.NewParameterDefinition(
				"storage-root-path",
				parameters.ParameterTypeString,
				parameters.WithHelp("Path the member files are dropped under"),
				parameters.WithDefault("input"),
			),
			parameters.NewParameterDefinition(
				"fs-base-dir",
				parameters.ParameterTypeString,
				parameters.WithHelp("Base directory for the fs backend"),
				parameters.WithDefault(""),
			),
			parameters.NewParameterDefinition(
				"credentials-vault-path",
				parameters.ParameterTypeString,
				parameters.WithHelp("Vault KV path whose keys override matching parameters (e.g. storage-connection-string)"),
				parameters.WithDefault(""),
			),
		),
	)
}

func AddStorageLayerToCommand(c glzcms.Command) (glzcms.Command, error) {
	l, err := NewStorageLayer()
	if err != nil {
		return nil, err
	}
	c.Description().Layers.Set(StorageSlug, l)
	return c, nil
}

func GetStorageSettings(parsed *glzlayers.ParsedLayers) (*StorageSettings, error) {
	var s StorageSettings
	if err := parsed.InitializeStruct(StorageSlug, &s); err != nil {
		return nil, fmt.Errorf("failed to parse storage settings: %w", err)
	}
	return &s, nil
}
