package cmds

import (
	"context"
	"fmt"
	"os"

	glzcli "github.com/go-go-golems/glazed/pkg/cli"
	gcmds "github.com/go-go-golems/glazed/pkg/cmds"
	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"

	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/listing"
	"github.com/go-go-golems/batch-validator/pkg/output"
)

type ListCommand struct{ *gcmds.CommandDescription }

type ListSettings struct {
	Customers []string `glazed.parameter:"customers"`
	ReadyOnly bool     `glazed.parameter:"ready-only"`
	Paths     bool     `glazed.parameter:"paths"`
}

func NewListCommand() (*ListCommand, error) {
	// Glazed output layers for structured output
	glazedLayers, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}
	commandLayer, err := glzcli.NewCommandSettingsLayer()
	if err != nil {
		return nil, err
	}
	cd := gcmds.NewCommandDescription(
		"list",
		gcmds.WithShort("List every batch found under the root path, complete or not"),
		gcmds.WithFlags(
			parameters.NewParameterDefinition("customers", parameters.ParameterTypeStringList, parameters.WithHelp("Only show these customers")),
			parameters.NewParameterDefinition("ready-only", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Only show batches that would be validated")),
			parameters.NewParameterDefinition("paths", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Include member paths")),
		),
		gcmds.WithLayersList(glazedLayers, commandLayer),
	)
	if err := layers.AddStoreLayers(cd, false); err != nil {
		return nil, err
	}
	return &ListCommand{cd}, nil
}

// GlazeCommand: one row per batch, then one warning row per unusable entry
func (c *ListCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *glayers.ParsedLayers, gp middlewares.Processor) error {
	s := &ListSettings{}
	if err := parsed.InitializeStruct(glayers.DefaultSlug, s); err != nil {
		return err
	}
	cfg, err := loadConfig(parsed, false)
	if err != nil {
		return err
	}
	r, _, err := newRunner(cfg, nil)
	if err != nil {
		return err
	}

	res, err := r.Scanner.Scan(ctx)
	if err != nil {
		return err
	}
	schema := cfg.Validation.Schema
	bs := listing.FilterCustomers(res.Batches, s.Customers)
	for _, b := range bs {
		ready := r.Scanner.Ready(b)
		if s.ReadyOnly && !ready {
			continue
		}
		fields := []types.MapRowPair{
			types.MRP("customer", b.Customer()),
			types.MRP("timestamp", b.Timestamp().Format(timestampLayout)),
			types.MRP("status", b.Status.String()),
			types.MRP("complete", b.IsComplete(schema)),
			types.MRP("ready", ready),
			types.MRP("missing", b.Missing(schema)),
		}
		if s.Paths {
			fields = append(fields, types.MRP("paths", b.Paths()))
		}
		row := types.NewRow(fields...)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}

	if len(res.Failures) > 0 {
		fmt.Fprintln(os.Stderr, output.Warnf("%d entries under %q could not be grouped", len(res.Failures), cfg.Storage.RootPath))
	}
	return addFailureRows(ctx, gp, res.Failures)
}

var _ gcmds.GlazeCommand = &ListCommand{}
