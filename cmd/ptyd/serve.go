package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/server"
)

type serveFlags struct {
	configPath  string
	host        string
	port        int
	shell       string
	logLevel    string
	development bool
}

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the terminal broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(flags, cmd.Flags())
			if err != nil {
				return err
			}
			srv, err := server.NewServer(cfg, nil, version)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a TOML config file (default $"+config.FileEnv+")")
	cmd.Flags().StringVar(&flags.host, "host", "", "address to listen on")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "port to listen on; higher ports are tried when it is taken")
	cmd.Flags().StringVar(&flags.shell, "shell", "", "shell to start for each session")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().BoolVar(&flags.development, "dev", false, "human-readable development logging")

	return cmd
}

// loadServeConfig layers explicitly set flags over the file and environment.
func loadServeConfig(flags serveFlags, set *pflag.FlagSet) (*config.Config, error) {
	load := config.Load
	if set.Changed("config") {
		load = func() (*config.Config, error) { return config.LoadFile(flags.configPath) }
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if set.Changed("host") {
		cfg.Server.Host = flags.host
	}
	if set.Changed("port") {
		cfg.Server.Port = flags.port
	}
	if set.Changed("shell") {
		cfg.Terminal.Shell = flags.shell
	}
	if set.Changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if set.Changed("dev") {
		cfg.Logging.Development = flags.development
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
