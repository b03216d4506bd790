package cmd

import (
	"fmt"

	mcpserver "github.com/lukman83/closeshave/mcp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP stdio server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting CloseShave MCP server on stdio...")
	if err := mcpserver.Serve(a.mcpDeps()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (a *app) mcpDeps() mcpserver.Deps {
	return mcpserver.Deps{
		Version:   cfg.Version,
		Search:    a.search,
		Merchants: a.registry,
		Validator: a.validator,
		Log:       a.log.Named("mcp"),
	}
}
