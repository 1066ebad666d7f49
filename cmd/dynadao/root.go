package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jacentio/dynadao/internal/config"
	"github.com/jacentio/dynadao/internal/logging"
	"github.com/jacentio/dynadao/store"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	cfgPath   string
	tenant    string
	verbosity int

	in  io.Reader
	out io.Writer
	err io.Writer

	// newClient builds the DynamoDB client; replaced in tests.
	newClient func(ctx context.Context, a config.AWS) (store.Client, error)

	cfg    *config.Config
	logger zerolog.Logger
	store  *store.Store
}

func newApp() *app {
	return &app{
		in:  os.Stdin,
		out: os.Stdout,
		err: os.Stderr,
		newClient: func(ctx context.Context, a config.AWS) (store.Client, error) {
			return config.NewDynamoClient(ctx, a)
		},
	}
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

var exampleUsage = strings.TrimSpace(`
  dynadao --tenant myapp init
  echo '{"type":"user","name":"Alice"}' | dynadao --tenant myapp create
  dynadao --tenant myapp get 1f0c...
  dynadao --tenant myapp page --limit 50 --pages 0
`)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "dynadao",
		Short:         "Inspect and maintain multi-tenant object tables in DynamoDB",
		Example:       exampleUsage,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context(), cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.err)

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (.toml, .yaml)")
	root.PersistentFlags().StringVarP(&a.tenant, "tenant", "t", "", "tenant id (default: store.default_tenant)")
	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "increase log verbosity (-v, -vv, -vvv)")

	root.AddCommand(
		newInitCmd(a),
		newCreateCmd(a),
		newGetCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newGetAllCmd(a),
		newPageCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger and store.
func (a *app) setup(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	verbosity := cfg.Log.Verbosity
	if cmd.Flags().Changed("verbose") {
		verbosity = a.verbosity
	}
	a.logger = logging.New(a.err, verbosity, cfg.Log.JSON)

	if a.tenant == "" {
		a.tenant = cfg.Store.DefaultTenant
	}
	if a.tenant == "" {
		a.tenant = store.DefaultConfig().DefaultTenant
	}

	client, err := a.newClient(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	storeLogger := logging.WithComponent(a.logger, "store")
	a.store = store.NewWithOptions(client, cfg.Store, store.Options{Logger: &storeLogger})

	a.logger.Debug().
		Str("tenant", a.tenant).
		Str("table", a.store.TargetFor(a.tenant).Table).
		Str("mode", a.store.TargetFor(a.tenant).Mode.String()).
		Msg("store ready")
	return nil
}
