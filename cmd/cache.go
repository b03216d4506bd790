package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errEmptyQuery = errors.New("query must not be empty")

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the search cache",
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired cache entries",
	RunE:  runCacheSweep,
}

func init() {
	cacheCmd.AddCommand(cacheSweepCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheSweep(cmd *cobra.Command, args []string) error {
	if !cfg.CacheEnabled {
		return errors.New("cache is disabled")
	}
	a, err := newApp(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.Sweep(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("sweep %s cache: %w", cfg.StoreBackend(), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries from the %s cache.\n", n, cfg.StoreBackend())
	return nil
}
