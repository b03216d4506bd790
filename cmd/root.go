package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/lukman83/closeshave/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "closeshave",
	Short: "CloseShave - multi-merchant product search CLI, API & MCP server",
	Long: "Searches several US merchants at once and ranks the listings by estimated " +
		"total price including shipping and sales tax.",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to YAML settings file")
	rootCmd.PersistentFlags().Bool("respect-robots", true, "Respect robots.txt rules")
	rootCmd.PersistentFlags().String("renderer", "", "Headless renderer: rod, playwright")
	rootCmd.PersistentFlags().String("proxy-file", "", "Path to proxy list file")
	rootCmd.PersistentFlags().String("cache-backend", "", "Cache backend: auto, memory, postgres, redis")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the search cache")
	rootCmd.PersistentFlags().Duration("merchant-timeout", 0, "Upper bound for one merchant's search")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// initConfig layers defaults, the settings file, the environment and flags,
// in that order.
func initConfig(cmd *cobra.Command, _ []string) error {
	cfg = config.DefaultConfig()

	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	if err := cfg.LoadFile(path); err != nil {
		return err
	}
	cfg.LoadFromEnv()

	if v, _ := flags.GetBool("respect-robots"); !v {
		cfg.RespectRobots = false
	}
	if v, _ := flags.GetString("renderer"); v != "" {
		cfg.Renderer = v
	}
	if v, _ := flags.GetString("proxy-file"); v != "" {
		cfg.ProxyFile = v
	}
	if v, _ := flags.GetString("cache-backend"); v != "" {
		cfg.CacheBackend = v
	}
	if v, _ := flags.GetBool("no-cache"); v {
		cfg.CacheEnabled = false
	}
	if v, _ := flags.GetDuration("merchant-timeout"); v > time.Duration(0) {
		cfg.MerchantTimeout = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
