package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/airyra/accesslog/internal/config"
	"github.com/airyra/accesslog/internal/server"
	"github.com/airyra/accesslog/pkg/accesslog"
)

// newRootCmd builds the accesslogd command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "accesslogd",
		Short: "HTTP server with access logging",
		Long: `Serves a small HTTP API behind the access log middleware.

Every completed HTTP request is written as one line in the configured
format. Settings come from built-in defaults, then the config file, then
ACCESSLOG_BIND and ACCESSLOG_FORMAT, then flags.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg)
			if err != nil {
				return err
			}
			return srv.ListenAndServe()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a .toml or .yaml config file")
	rootCmd.Flags().String("bind", config.DefaultBind, "Address to bind the server to")
	rootCmd.Flags().String("format", accesslog.DefaultFormat, "Access log format")
	rootCmd.Flags().String("backend", config.DefaultBackend, "Access log backend (zap, zerolog, std)")
	rootCmd.Flags().String("output", config.DefaultOutput, "Access log output (stderr, stdout)")

	rootCmd.AddCommand(newFieldsCmd())

	return rootCmd
}

// resolveConfig loads the config file named by --config and applies the
// flags the user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Resolve(path, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"bind", &cfg.Server.Bind},
		{"format", &cfg.AccessLog.Format},
		{"backend", &cfg.AccessLog.Backend},
		{"output", &cfg.AccessLog.Output},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.flag) {
			continue
		}
		v, err := cmd.Flags().GetString(o.flag)
		if err != nil {
			return nil, err
		}
		*o.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalid),
		errors.Is(err, config.ErrUnsupportedFile),
		errors.Is(err, accesslog.ErrMalformedTemplate),
		errors.Is(err, accesslog.ErrUnknownPlaceholder):
		return ExitConfigError
	}
	return ExitGeneralError
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
