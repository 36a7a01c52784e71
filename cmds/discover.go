package cmds

import (
	"context"
	"fmt"
	"os"
	"time"

	glzcli "github.com/go-go-golems/glazed/pkg/cli"
	gcmds "github.com/go-go-golems/glazed/pkg/cmds"
	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"

	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/output"
	"github.com/go-go-golems/batch-validator/pkg/runner"
)

type DiscoverCommand struct{ *gcmds.CommandDescription }

type DiscoverSettings struct {
	Claim     bool     `glazed.parameter:"claim"`
	Dispatch  bool     `glazed.parameter:"dispatch"`
	Customers []string `glazed.parameter:"customers"`
}

func NewDiscoverCommand() (*DiscoverCommand, error) {
	glazedLayers, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}
	commandLayer, err := glzcli.NewCommandSettingsLayer()
	if err != nil {
		return nil, err
	}
	cd := gcmds.NewCommandDescription(
		"discover",
		gcmds.WithShort("Find complete batches that need validation"),
		gcmds.WithLong("Lists the store once, groups member files into batches and reports the complete ones "+
			"whose status calls for validation. With --claim they are marked RUNNING; with --dispatch they are "+
			"also published to Kafka."),
		gcmds.WithFlags(
			parameters.NewParameterDefinition("claim", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Mark ready batches RUNNING (pair with --dispatch, or set --stale-after)")),
			parameters.NewParameterDefinition("dispatch", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Claim and publish ready batches to Kafka")),
			parameters.NewParameterDefinition("customers", parameters.ParameterTypeStringList, parameters.WithHelp("Only consider these customers")),
		),
		gcmds.WithLayersList(glazedLayers, commandLayer),
	)
	if err := layers.AddStoreLayers(cd, true); err != nil {
		return nil, err
	}
	return &DiscoverCommand{cd}, nil
}

func (c *DiscoverCommand) RunIntoGlazeProcessor(ctx context.Context, parsed *glayers.ParsedLayers, gp middlewares.Processor) error {
	s := &DiscoverSettings{}
	if err := parsed.InitializeStruct(glayers.DefaultSlug, s); err != nil {
		return err
	}
	cfg, err := loadConfig(parsed, s.Dispatch)
	if err != nil {
		return err
	}

	var d dispatch.Dispatcher
	if s.Dispatch {
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		kd, err := dispatch.NewKafkaDispatcher(cfg.Queue.Brokers, cfg.Queue.Topic)
		if err != nil {
			return fmt.Errorf("failed to create Kafka dispatcher: %w", err)
		}
		defer func() { _ = kd.Close() }()
		d = kd
	}

	if msg := orphanedClaimWarning(s, cfg.Validation.StaleAfter); msg != "" {
		fmt.Fprintln(os.Stderr, output.Warnf("%s", msg))
	}

	r, _, err := newRunner(cfg, d)
	if err != nil {
		return err
	}
	res, err := r.Trigger(ctx, runner.TriggerOptions{Claim: s.Claim, Dispatch: s.Dispatch, Customers: s.Customers})
	if err != nil {
		return err
	}

	claimed := map[string]bool{}
	for _, b := range res.Claimed {
		claimed[b.Key().String()] = true
	}
	for _, b := range res.Ready {
		row := types.NewRow(
			types.MRP("customer", b.Customer()),
			types.MRP("timestamp", b.Timestamp().Format(timestampLayout)),
			types.MRP("status", b.Status.String()),
			types.MRP("claimed", claimed[b.Key().String()]),
			types.MRP("claim_id", b.ClaimID),
			types.MRP("members", len(b.Members)),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return addFailureRows(ctx, gp, res.Failures)
}

// orphanedClaimWarning explains that batches claimed without being dispatched
// stay RUNNING until stale-after recovers them, or forever when it is off.
func orphanedClaimWarning(s *DiscoverSettings, staleAfter time.Duration) string {
	if !s.Claim || s.Dispatch {
		return ""
	}
	if staleAfter <= 0 {
		return "--claim without --dispatch leaves batches RUNNING with nothing to validate them, and stale-after is off"
	}
	return fmt.Sprintf("--claim without --dispatch leaves batches RUNNING until they are %s old", staleAfter)
}

var _ gcmds.GlazeCommand = &DiscoverCommand{}
