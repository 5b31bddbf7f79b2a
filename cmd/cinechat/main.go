// Package main is the entry point for the cinechat CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/config"
	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/security"
	"github.com/flemzord/cinechat/pkg/app"

	// Compiled-in modules.
	_ "github.com/flemzord/cinechat/internal/gateway"
	_ "github.com/flemzord/cinechat/modules/content/tmdb"
	_ "github.com/flemzord/cinechat/modules/content/tvmaze"
	_ "github.com/flemzord/cinechat/modules/memory/gorm"
	_ "github.com/flemzord/cinechat/modules/memory/sqlite"
	_ "github.com/flemzord/cinechat/modules/provider/concentrate"
)

// Overridden at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cinechat",
		Short:         "Conversational movie and TV assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), serveCmd(), configCmd(), initCmd(), mcpCmd(), serviceCmd())
	return root
}

var moduleFamilies = []string{"gateway", "memory", "provider", "content"}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cinechat %s (commit: %s, built: %s)\n", version, commit, date)
			if len(core.GetModules()) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, family := range moduleFamilies {
				for _, mod := range core.GetModulesByFamily(family) {
					fmt.Fprintf(out, "  %-10s %s\n", family, mod.ID)
				}
			}
		},
	}
}

func serveCmd() *cobra.Command {
	var (
		dataDir  string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := runParams(cmd, dataDir, logLevel)
			if err != nil {
				return err
			}
			return app.Run(params)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent data (default $XDG_DATA_HOME/cinechat)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	return cmd
}

func runParams(cmd *cobra.Command, dataDir, logLevel string) (app.RunParams, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	params := app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
	}
	if logLevel != "" {
		level, err := config.ParseLevel(logLevel)
		if err != nil {
			return params, err
		}
		params.LogLevel = &level
	}
	return params, nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	var show bool
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if len(args) == 1 {
				cfgPath = args[0]
			}
			if cfgPath == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			quiet := slog.LevelError
			application, rt, err := app.Build(cfg, app.RunParams{Version: version, LogLevel: &quiet})
			if err != nil {
				return err
			}
			defer application.Stop()

			out := cmd.OutOrStdout()
			ids := config.Resolve(cfg)
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			if show {
				fmt.Fprintf(out, "\nagent: model=%s max_iterations=%d memory_token_limit=%d serialize_turns=%t max_run_age=%s\n",
					cfg.Agent.Model, cfg.Agent.MaxIterations, cfg.Agent.MemoryTokenLimit,
					cfg.Agent.SerializeTurns, cfg.Agent.MaxRunAge)
				fmt.Fprintf(out, "log: level=%s format=%s\n", cfg.Log.Level, cfg.Log.Format)
				fmt.Fprintf(out, "telemetry: enabled=%t endpoint=%s\n", cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint)
				return printModules(out, cfg, rt.Redactor)
			}
			return nil
		},
	}
	check.Flags().BoolVar(&show, "show", false, "Print the resolved settings with secrets redacted")
	cmd.AddCommand(check)
	return cmd
}

// printModules writes each module's resolved section as YAML, in load
// order, with secrets hidden.
func printModules(w io.Writer, cfg *config.Config, redactor *security.Redactor) error {
	fmt.Fprintln(w, "\nmodules:")
	for _, id := range config.Resolve(cfg) {
		section := map[string]any{}
		if node := cfg.Modules[id]; node.Kind != 0 {
			if err := node.Decode(&section); err != nil {
				return fmt.Errorf("decoding %s: %w", id, err)
			}
		}
		redactor.RedactMap(section)
		data, err := yaml.Marshal(map[string]any{id: section})
		if err != nil {
			return err
		}
		for line := range strings.Lines(string(data)) {
			fmt.Fprint(w, "  ", line)
		}
	}
	return nil
}
