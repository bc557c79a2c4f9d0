package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/connector/registry"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/facade"
	"github.com/ajitpratap0/idconnect/pkg/json"
	"github.com/ajitpratap0/idconnect/pkg/logger"
	"github.com/ajitpratap0/idconnect/pkg/observability"
	"github.com/ajitpratap0/idconnect/pkg/security"

	// Import all available connectors to register them
	_ "github.com/ajitpratap0/idconnect/pkg/connector/connectors/dbtable"
	_ "github.com/ajitpratap0/idconnect/pkg/connector/connectors/sample"
)

var version = "0.1.0"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configFile string
	logLevel   string
	pretty     bool
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "idconnect",
		Short: "idconnect - identity resource connectors",
		Long: `idconnect drives identity resource connectors from the command line.
Each command that talks to a resource reads a connector file naming the
connector type, its properties and optional framework settings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to the connector file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error); overrides the connector file")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Indent JSON output")

	// Version command
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "idconnect v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered connector types and their operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := newEncoder(cmd.OutOrStdout(), opts, true)
			for _, info := range registry.List() {
				if err := enc.Encode(info); err != nil {
					return err
				}
			}
			return enc.Close()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "describe <type>",
		Short: "Describe the configuration properties of a connector type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := registry.Lookup(args[0])
			if err != nil {
				return err
			}
			enc := newEncoder(cmd.OutOrStdout(), opts, true)
			for _, field := range entry.NewConfig().Fields() {
				if err := enc.Encode(field); err != nil {
					return err
				}
			}
			return enc.Close()
		},
	})

	root.AddCommand(
		newValidateCommand(opts),
		newTestCommand(opts),
		newSchemaCommand(opts),
		newSearchCommand(opts),
		newGetCommand(opts),
		newCreateCommand(opts),
		newUpdateCommand(opts),
		newDeleteCommand(opts),
		newAuthenticateCommand(opts),
		newSyncCommand(opts),
		newScriptCommand(opts),
	)
	return root
}

// session is an open facade plus the process-wide services set up for it.
type session struct {
	*facade.Facade
	shutdown observability.ShutdownFunc
}

// openSession loads the connector file, configures logging and tracing from
// its framework section and opens the facade.
func openSession(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	if opts.configFile == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "a connector file is required (--config)")
	}
	ctx := cmd.Context()
	cf, err := config.LoadConnectorFile(opts.configFile)
	if err != nil {
		return nil, err
	}

	logging := cf.Framework.Logging
	if cmd.Flags().Changed("log-level") || logging.Level == "" {
		logging.Level = opts.logLevel
	}
	if len(logging.OutputPaths) == 0 {
		logging.OutputPaths = []string{"stderr"}
	}
	if err := logger.Init(logging); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}

	shutdown, err := observability.InitTracing(ctx, cf.Framework.Observability, observability.TracingOptions{
		ServiceName:    "idconnect",
		ServiceVersion: version,
		Environment:    os.Getenv("IDCONNECT_ENVIRONMENT"),
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	resolver, err := newResolver()
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	f, err := facade.FromConnectorFile(ctx, cf, resolver)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	logger.Get().Debug("connector opened",
		zap.String("connector", cf.Connector),
		zap.String("config", opts.configFile))
	return &session{Facade: f, shutdown: shutdown}, nil
}

func (s *session) close(ctx context.Context) {
	s.Close()
	if err := s.shutdown(ctx); err != nil {
		logger.Get().Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = logger.Sync()
}

// newResolver registers the Vault source when VAULT_ADDR is set.
func newResolver() (*security.Resolver, error) {
	r := security.NewResolver()
	if os.Getenv("VAULT_ADDR") == "" {
		return r, nil
	}
	vs, err := security.NewVaultSource(security.VaultOptions{Namespace: os.Getenv("VAULT_NAMESPACE")})
	if err != nil {
		return nil, err
	}
	r.Register(security.SchemeVault, vs)
	return r, nil
}

func newEncoder(w io.Writer, opts *rootOptions, isArray bool) *json.StreamingEncoder {
	enc := json.NewStreamingEncoder(w, isArray)
	if opts.pretty {
		enc.SetPretty(true, "  ")
	}
	return enc
}

// writeJSON prints a single document.
func writeJSON(w io.Writer, opts *rootOptions, v interface{}) error {
	if !opts.pretty {
		return json.MarshalToWriter(w, v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
