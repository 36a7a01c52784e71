package cmds

import (
	"context"

	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/types"

	"github.com/go-go-golems/batch-validator/pkg/config"
	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/runner"
	"github.com/go-go-golems/batch-validator/pkg/store"
)

const timestampLayout = "2006-01-02T15:04Z"

func loadConfig(parsed *glayers.ParsedLayers, withQueue bool) (*config.Config, error) {
	ss, err := layers.GetStorageSettings(parsed)
	if err != nil {
		return nil, err
	}
	vs, err := layers.GetValidationSettings(parsed)
	if err != nil {
		return nil, err
	}
	var qs *layers.QueueSettings
	if withQueue {
		if qs, err = layers.GetQueueSettings(parsed); err != nil {
			return nil, err
		}
	}
	return config.FromSettings(ss, vs, qs)
}

// newRunner opens the configured store and wires a runner on top of it.
func newRunner(cfg *config.Config, d dispatch.Dispatcher) (*runner.Runner, store.Store, error) {
	s, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, err
	}
	return runner.New(cfg, s, d), s, nil
}

func addFailureRows(ctx context.Context, gp middlewares.Processor, failures []error) error {
	for _, f := range failures {
		row := types.NewRow(
			types.MRP("type", "warning"),
			types.MRP("error", f.Error()),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
