package cmds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	glzcli "github.com/go-go-golems/glazed/pkg/cli"
	gcmds "github.com/go-go-golems/glazed/pkg/cmds"
	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/output"
)

type ValidateCommand struct{ *gcmds.CommandDescription }

type ValidateSettings struct {
	Payload string `glazed.parameter:"payload"`
	Consume bool   `glazed.parameter:"consume"`
	Workers int    `glazed.parameter:"workers"`
	NoColor bool   `glazed.parameter:"no-color"`
}

func NewValidateCommand() (*ValidateCommand, error) {
	layer, err := glzcli.NewCommandSettingsLayer()
	if err != nil {
		return nil, err
	}
	cd := gcmds.NewCommandDescription(
		"validate",
		gcmds.WithShort("Validate a dispatched batch, or consume batches from Kafka"),
		gcmds.WithLong("Validates the batch described by a dispatch payload (a JSON file, or '-' for stdin) "+
			"and prints the verdict. With --consume, batches are read from the Kafka topic until interrupted."),
		gcmds.WithFlags(
			parameters.NewParameterDefinition("payload", parameters.ParameterTypeString, parameters.WithShortFlag("p"), parameters.WithHelp("Dispatch payload file, or '-' for stdin")),
			parameters.NewParameterDefinition("consume", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Consume batches from the Kafka topic")),
			parameters.NewParameterDefinition("workers", parameters.ParameterTypeInteger, parameters.WithDefault(4), parameters.WithHelp("Concurrent validations when consuming")),
			parameters.NewParameterDefinition("no-color", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Disable colored output")),
		),
		gcmds.WithLayersList(layer),
	)
	if err := layers.AddStoreLayers(cd, true); err != nil {
		return nil, err
	}
	return &ValidateCommand{cd}, nil
}

func (c *ValidateCommand) Run(ctx context.Context, parsed *glayers.ParsedLayers) error {
	s := &ValidateSettings{}
	if err := parsed.InitializeStruct(glayers.DefaultSlug, s); err != nil {
		return err
	}
	output.InitConsole(s.NoColor)
	if s.Consume == (s.Payload != "") {
		return errors.New("exactly one of --payload or --consume is required")
	}

	cfg, err := loadConfig(parsed, s.Consume)
	if err != nil {
		return err
	}
	r, _, err := newRunner(cfg, nil)
	if err != nil {
		return err
	}

	if s.Consume {
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		src, err := dispatch.NewKafkaSource(cfg.Queue.Brokers, cfg.Queue.Topic, cfg.Queue.GroupID)
		if err != nil {
			return fmt.Errorf("failed to create Kafka source: %w", err)
		}
		defer func() { _ = src.Close() }()
		fmt.Fprintln(os.Stderr, output.Notef("Consuming %s with %d workers", cfg.Queue.Topic, s.Workers))
		return r.Consume(ctx, src, s.Workers)
	}

	data, err := readPayload(s.Payload)
	if err != nil {
		return err
	}
	b, err := batch.Decode(data)
	if err != nil {
		return err
	}
	report, err := r.Engine.Validate(ctx, b)
	fmt.Print(output.Verdict(report))
	return err
}

func readPayload(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}

var _ gcmds.BareCommand = &ValidateCommand{}
