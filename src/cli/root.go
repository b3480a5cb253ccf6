package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mongomap/src/connection"
	"mongomap/src/schema"
	"mongomap/src/settings"
)

const Version = "0.1.0"

var (
	logger *zap.SugaredLogger
	conn   *connection.Connection

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mongomap",
		Short: "document-object mapping toolkit for mongodb",
		Long: fmt.Sprintf(`mongomap (v%s)

Inspect and manipulate collections managed through the mongomap document
mapping layer. Connection settings come from flags, MONGOMAP_* environment
variables, an optional .env file, or a config file.`, Version),
		PersistentPreRunE: setup,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mongomap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mongomap v%s\n", Version)
		},
	}
)

func init() {
	args := settings.GetSettings()

	RootCmd.PersistentFlags().StringVar(&args.Host, "host", args.Host, "Host name or IP address of the mongod")
	RootCmd.PersistentFlags().IntVar(&args.Port, "port", args.Port, "Port of the mongod")
	RootCmd.PersistentFlags().StringVar(&args.Username, "username", "", "Username to authenticate with")
	RootCmd.PersistentFlags().StringVar(&args.Password, "password", "", "Password to authenticate with")
	RootCmd.PersistentFlags().StringVar(&args.AuthDatabase, "auth-database", "", "Database to authenticate against (default: admin)")
	RootCmd.PersistentFlags().StringVar(&args.ConfigFile, "config", "", "Path to config file")
	RootCmd.PersistentFlags().StringVar(&args.EnvFile, "env-file", "", "Path to .env file")
	RootCmd.PersistentFlags().StringVar(&args.UnknownFieldHandling, "unknown-field-handling", args.UnknownFieldHandling, "Handling of fields not in a defaults declaration (silent, warn, error)")
	RootCmd.PersistentFlags().StringVar(&args.TypeChecking, "type-checking", args.TypeChecking, "Handling of value/default type mismatches (silent, warn, error)")
	RootCmd.PersistentFlags().BoolVar(&args.Debug, "debug", false, "Enable debug mode")
	RootCmd.PersistentFlags().BoolVar(&args.Verbose, "verbose", false, "Enable verbose logging")

	RootCmd.AddCommand(versionCmd)
}

// setup resolves configuration, builds the logger and the connection.
func setup(cmd *cobra.Command, _ []string) error {
	args := settings.GetSettings()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := settings.LoadConfig(args); err != nil {
		return err
	}

	var zl *zap.Logger
	var err error
	if args.Debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stdout"}
		zl, err = z.Build()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(zl)
	logger = zl.Sugar()

	level, err := schema.ParseAlertLevel(args.UnknownFieldHandling)
	if err != nil {
		return err
	}
	schema.SetUnknownFieldHandling(level)
	level, err = schema.ParseAlertLevel(args.TypeChecking)
	if err != nil {
		return err
	}
	schema.SetTypeChecking(level)

	conn = connection.New(logger)
	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
