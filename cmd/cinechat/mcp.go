package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/flemzord/cinechat/internal/config"
	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/tool"
	"github.com/flemzord/cinechat/pkg/app"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the movie and TV lookup tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
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

			// Stdout carries the protocol; logs stay on stderr.
			level := slog.LevelWarn
			_, rt, err := app.Build(cfg, app.RunParams{Version: version, LogLevel: &level, LogOutput: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			tools, ok := core.ServiceAs[*tool.Registry](rt.AppCtx, core.ServiceToolRegistry)
			if !ok {
				return errors.New("mcp: no tool registry")
			}
			return server.ServeStdio(newMCPServer(tools))
		},
	}
}

// newMCPServer exposes every registered content tool as an MCP tool.
func newMCPServer(tools *tool.Registry) *server.MCPServer {
	s := server.NewMCPServer("cinechat", version, server.WithToolCapabilities(false))
	for _, def := range tools.Definitions() {
		s.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, def.Parameters), mcpHandler(tools, def.Name))
	}
	return s
}

func mcpHandler(tools *tool.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		arguments := req.GetArguments()
		if arguments == nil {
			arguments = map[string]any{}
		}
		args, err := json.Marshal(arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		out, err := tools.Execute(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if out.IsError {
			return mcp.NewToolResultError(out.Content), nil
		}
		return mcp.NewToolResultText(out.Content), nil
	}
}
