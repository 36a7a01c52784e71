package layers

import (
	"fmt"

	glzcms "github.com/go-go-golems/glazed/pkg/cmds"
	glzlayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
)

const ValidationSlug = "validation"

type ValidationSettings struct {
	SchemaFile       string `glazed.parameter:"schema-file"`
	RequiredEncoding string `glazed.parameter:"required-encoding"`
	PollInterval     string `glazed.parameter:"poll-interval"`
	MaxPolls         int    `glazed.parameter:"max-polls"`
	StaleAfter       string `glazed.parameter:"stale-after"`
}

func NewValidationLayer() (glzlayers.ParameterLayer, error) {
	return glzlayers.NewParameterLayer(
		ValidationSlug,
		"Validation and relocation settings",
		glzlayers.WithParameterDefinitions(
			parameters.NewParameterDefinition(
				"schema-file",
				parameters.ParameterTypeString,
				parameters.WithHelp("YAML schema file (defaults to the built-in type table)"),
				parameters.WithDefault(""),
			),
			parameters.NewParameterDefinition(
				"required-encoding",
				parameters.ParameterTypeString,
				parameters.WithHelp("Encoding every member must have (defaults to the schema encoding)"),
				parameters.WithDefault(""),
			),
			parameters.NewParameterDefinition(
				"poll-interval",
				parameters.ParameterTypeString,
				parameters.WithHelp("Interval between copy status polls during relocation"),
				parameters.WithDefault("5s"),
			),
			parameters.NewParameterDefinition(
				"max-polls",
				parameters.ParameterTypeInteger,
				parameters.WithHelp("Polls before a pending copy times out"),
				parameters.WithDefault(10),
			),
			parameters.NewParameterDefinition(
				"stale-after",
				parameters.ParameterTypeString,
				parameters.WithHelp("Re-surface RUNNING batches claimed longer ago than this (0 disables)"),
				parameters.WithDefault("0"),
			),
		),
	)
}

func AddValidationLayerToCommand(c glzcms.Command) (glzcms.Command, error) {
	l, err := NewValidationLayer()
	if err != nil {
		return nil, err
	}
	c.Description().Layers.Set(ValidationSlug, l)
	return c, nil
}

func GetValidationSettings(parsed *glzlayers.ParsedLayers) (*ValidationSettings, error) {
	var s ValidationSettings
	if err := parsed.InitializeStruct(ValidationSlug, &s); err != nil {
		return nil, fmt.Errorf("failed to parse validation settings: %w", err)
	}
	return &s, nil
}
