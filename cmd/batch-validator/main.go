package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	gcmds "github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/cmds/middlewares"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	appcmds "github.com/go-go-golems/batch-validator/cmds"
	appdoc "github.com/go-go-golems/batch-validator/pkg/doc"
	"github.com/go-go-golems/batch-validator/pkg/glazed"
)

var version = "dev"

func getMiddlewares(parsedLayers *layers.ParsedLayers, cmd *cobra.Command, args []string) ([]middlewares.Middleware, error) {
	commandSettings := &cli.CommandSettings{}
	err := parsedLayers.InitializeStruct(cli.CommandSettingsSlug, commandSettings)
	if err != nil {
		return nil, err
	}

	// Vault runs first so that it sees the fully parsed storage layer and its
	// values win over every other source.
	mw_ := []middlewares.Middleware{
		glazed.UpdateFromVault(glazed.ReadVaultSecrets,
			parameters.WithParseStepSource("vault"),
		),
		middlewares.ParseFromCobraCommand(cmd,
			parameters.WithParseStepSource("cobra"),
		),
		middlewares.GatherArguments(args,
			parameters.WithParseStepSource("arguments"),
		),
	}

	mw_ = append(mw_,
		middlewares.GatherFlagsFromViper(parameters.WithParseStepSource("viper")),
		middlewares.SetFromDefaults(parameters.WithParseStepSource("defaults")),
	)

	return mw_, nil
}

func main() {
	// A local .env may carry BATCH_VALIDATOR_* settings.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env")
	}

	rootCmd := &cobra.Command{
		Use:     "batch-validator",
		Short:   "Discover, validate and route customer file batches in blob storage",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			err := logging.InitLoggerFromViper()
			cobra.CheckErr(err)
		},
	}

	clay.InitViper("batch-validator", rootCmd)

	// Help system
	hs := help.NewHelpSystem()
	_ = appdoc.AddDocToHelpSystem(hs)
	help_cmd.SetupCobraRootCommand(hs, rootCmd)

	opts := []cli.CobraOption{
		cli.WithParserConfig(cli.CobraParserConfig{
			MiddlewaresFunc: getMiddlewares,
		}),
	}

	constructors := []func() (gcmds.Command, error){
		func() (gcmds.Command, error) { return appcmds.NewDiscoverCommand() },
		func() (gcmds.Command, error) { return appcmds.NewListCommand() },
		func() (gcmds.Command, error) { return appcmds.NewValidateCommand() },
		func() (gcmds.Command, error) { return appcmds.NewRunCommand() },
		func() (gcmds.Command, error) { return appcmds.NewServeCommand() },
		func() (gcmds.Command, error) { return appcmds.NewSchemaCommand() },
	}
	for _, newCmd := range constructors {
		c, err := newCmd()
		cobra.CheckErr(err)
		cmd, err := cli.BuildCobraCommand(c, opts...)
		cobra.CheckErr(err)
		rootCmd.AddCommand(cmd)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}
