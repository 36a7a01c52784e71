package cmds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	glzcli "github.com/go-go-golems/glazed/pkg/cli"
	gcmds "github.com/go-go-golems/glazed/pkg/cmds"
	glayers "github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/batch-validator/pkg/dispatch"
	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/output"
	"github.com/go-go-golems/batch-validator/pkg/server"
)

type ServeCommand struct{ *gcmds.CommandDescription }

type ServeSettings struct {
	Addr  string `glazed.parameter:"addr"`
	Kafka bool   `glazed.parameter:"kafka"`
}

func NewServeCommand() (*ServeCommand, error) {
	layer, err := glzcli.NewCommandSettingsLayer()
	if err != nil {
		return nil, err
	}
	cd := gcmds.NewCommandDescription(
		"serve",
		gcmds.WithShort("Serve discovery and validation over HTTP"),
		gcmds.WithFlags(
			parameters.NewParameterDefinition("addr", parameters.ParameterTypeString, parameters.WithDefault(":8080"), parameters.WithHelp("Listen address")),
			parameters.NewParameterDefinition("kafka", parameters.ParameterTypeBool, parameters.WithDefault(false), parameters.WithHelp("Publish batches discovered with dispatch=true to Kafka")),
		),
		gcmds.WithLayersList(layer),
	)
	if err := layers.AddStoreLayers(cd, true); err != nil {
		return nil, err
	}
	return &ServeCommand{cd}, nil
}

func (c *ServeCommand) Run(ctx context.Context, parsed *glayers.ParsedLayers) error {
	s := &ServeSettings{}
	if err := parsed.InitializeStruct(glayers.DefaultSlug, s); err != nil {
		return err
	}
	cfg, err := loadConfig(parsed, s.Kafka)
	if err != nil {
		return err
	}

	var d dispatch.Dispatcher
	if s.Kafka {
		if err := cfg.ValidateQueue(); err != nil {
			return err
		}
		kd, err := dispatch.NewKafkaDispatcher(cfg.Queue.Brokers, cfg.Queue.Topic)
		if err != nil {
			return err
		}
		defer func() { _ = kd.Close() }()
		d = kd
	}
	r, _, err := newRunner(cfg, d)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           server.New(r).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintln(os.Stderr, output.Notef("Listening on %s", s.Addr))
	log.Info().Str("addr", s.Addr).Msg("Server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ gcmds.BareCommand = &ServeCommand{}
