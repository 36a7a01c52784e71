package cmds

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	glzcli "github.com/go-go-golems/glazed/pkg/cli"
	gcmds "github.com/go-go-golems/glazed/pkg/cmds"
	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/output"
	"github.com/go-go-golems/batch-validator/pkg/runner"
)

const (
	transportChannel = "channel"
	transportKafka   = "kafka"
)

type RunCommand struct{ *gcmds.CommandDescription }

type RunSettings struct {
	Interval  string   `glazed.parameter:"interval"`
	Workers   int      `glazed.parameter:"workers"`
	Transport string   `glazed.parameter:"transport"`
	Customers []string `glazed.parameter:"customers"`
	NoColor   bool     `glazed.parameter:"no-color"`
}

func NewRunCommand() (*RunCommand, error) {
	layer, err := glzcli.NewCommandSettingsLayer()
	if err != nil {
		return nil, err
	}
	cd := gcmds.NewCommandDescription(
		"run",
		gcmds.WithShort("Discover, dispatch and validate batches on a schedule"),
		gcmds.WithLong("Runs a discovery pass every --interval and validates the dispatched batches with "+
			"--workers concurrent validators. The channel transport keeps everything in process; the kafka "+
			"transport publishes to and consumes from the configured topic."),
		gcmds.WithFlags(
			parameters.NewParameterDefinition("interval", parameters.ParameterTypeString, parameters.WithDefault("1m"), parameters.WithHelp("Time between discovery passes")),
			parameters.NewParameterDefinition("workers", parameters.ParameterTypeInteger, parameters.WithDefault(4), parameters.WithHelp("Concurrent validations")),
			parameters.NewParameterDefinition("transport", parameters.ParameterTypeChoice, parameters.WithChoices(transportChannel, transportKafka), parameters.WithDefault(transportChannel), parameters.WithHelp("How claimed batches reach the validators")),
			parameters.NewParameterDefinition("customers", parameters.ParameterTypeStringList, parameters.WithHelp("Only consider these customers")),
			parameters.NewParameterDefinition("no-color", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Disable colored output")),
		),
		gcmds.WithLayersList(layer),
	)
	if err := layers.AddStoreLayers(cd, true); err != nil {
		return nil, err
	}
	return &RunCommand{cd}, nil
}

func (c *RunCommand) Run(ctx context.Context, parsed *glayers.ParsedLayers) error {
	s := &RunSettings{}
	if err := parsed.InitializeStruct(glayers.DefaultSlug, s); err != nil {
		return err
	}
	output.InitConsole(s.NoColor)
	interval, err := time.ParseDuration(s.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", s.Interval, err)
	}
	useKafka := s.Transport == transportKafka
	cfg, err := loadConfig(parsed, useKafka)
	if err != nil {
		return err
	}

	var (
		d   dispatch.Dispatcher
		src dispatch.Source
	)
	if useKafka {
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		kd, err := dispatch.NewKafkaDispatcher(cfg.Queue.Brokers, cfg.Queue.Topic)
		if err != nil {
			return err
		}
		defer func() { _ = kd.Close() }()
		ks, err := dispatch.NewKafkaSource(cfg.Queue.Brokers, cfg.Queue.Topic, cfg.Queue.GroupID)
		if err != nil {
			return err
		}
		defer func() { _ = ks.Close() }()
		d, src = kd, ks
	} else {
		ch := dispatch.NewChannel(s.Workers * 4)
		defer func() { _ = ch.Close() }()
		d, src = ch, ch
	}

	r, _, err := newRunner(cfg, d)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, output.Notef("Discovering every %s, validating with %d workers over %s", interval, s.Workers, s.Transport))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg         sync.WaitGroup
		consumeErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeErr = r.Consume(ctx, src, s.Workers)
		if consumeErr != nil {
			log.Error().Err(consumeErr).Msg("Validators stopped")
			cancel()
		}
	}()

	err = r.Schedule(ctx, interval, runner.TriggerOptions{Dispatch: true, Customers: s.Customers})
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	return consumeErr
}

var _ gcmds.BareCommand = &RunCommand{}
