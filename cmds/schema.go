package cmds

import (
	"context"

	glzcli "github.com/go-go-golems/glazed/pkg/cli"
	gcmds "github.com/go-go-golems/glazed/pkg/cmds"
	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/layers"
)

type SchemaCommand struct{ *gcmds.CommandDescription }

func NewSchemaCommand() (*SchemaCommand, error) {
	glazedLayers, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}
	commandLayer, err := glzcli.NewCommandSettingsLayer()
	if err != nil {
		return nil, err
	}
	cd := gcmds.NewCommandDescription(
		"schema",
		gcmds.WithShort("Show the recognized file types and their column counts"),
		gcmds.WithLayersList(glazedLayers, commandLayer),
	)
	if _, err := layers.AddValidationLayerToCommand(cd); err != nil {
		return nil, err
	}
	return &SchemaCommand{cd}, nil
}

func (c *SchemaCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *glayers.ParsedLayers, gp middlewares.Processor) error {
	vs, err := layers.GetValidationSettings(parsed)
	if err != nil {
		return err
	}
	schema := batch.DefaultSchema()
	if vs.SchemaFile != "" {
		if schema, err = batch.LoadSchema(vs.SchemaFile); err != nil {
			return err
		}
	}
	encoding := schema.Encoding
	if vs.RequiredEncoding != "" {
		encoding = vs.RequiredEncoding
	}

	for _, t := range schema.Types() {
		cols, _ := schema.Columns(t)
		row := types.NewRow(
			types.MRP("type", string(t)),
			types.MRP("columns", cols),
			types.MRP("reference", t == schema.Reference()),
			types.MRP("extension", schema.Extension),
			types.MRP("separator", schema.ColumnSeparator),
			types.MRP("enclosing", schema.Enclosing),
			types.MRP("encoding", encoding),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

var _ gcmds.GlazeCommand = &SchemaCommand{}
