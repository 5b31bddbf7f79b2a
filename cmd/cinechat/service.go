package main

import (
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/cinechat/pkg/app"
)

// program adapts app.Run to the service manager's start/stop callbacks.
type program struct {
	params app.RunParams
	stop   chan struct{}
	done   chan error
}

func (p *program) Start(service.Service) error {
	p.stop = make(chan struct{})
	p.done = make(chan error, 1)
	p.params.Stop = p.stop
	go func() { p.done <- app.Run(p.params) }()
	return nil
}

func (p *program) Stop(service.Service) error {
	close(p.stop)
	return <-p.done
}

var serviceActions = []string{"install", "uninstall", "start", "stop", "restart", "run", "status"}

func serviceCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|run|status>",
		Short:     "Manage cinechat as an OS service",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: serviceActions,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := runParams(cmd, dataDir, "")
			if err != nil {
				return err
			}
			if params.ConfigPath == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				params.ConfigPath = resolved
			}
			abs, err := filepath.Abs(params.ConfigPath)
			if err != nil {
				return err
			}
			params.ConfigPath = abs

			svc, err := service.New(&program{params: params}, serviceConfig(params))
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}

			switch args[0] {
			case "run":
				return svc.Run()
			case "status":
				status, err := svc.Status()
				if err != nil {
					return fmt.Errorf("service: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), statusName(status))
				return nil
			default:
				if err := service.Control(svc, args[0]); err != nil {
					return fmt.Errorf("service %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", args[0])
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for persistent data")
	return cmd
}

func serviceConfig(params app.RunParams) *service.Config {
	args := []string{"service", "run", "--config", params.ConfigPath}
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}
	return &service.Config{
		Name:        "cinechat",
		DisplayName: "Cinechat",
		Description: "Conversational movie and TV assistant backend",
		Arguments:   args,
	}
}

func statusName(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
