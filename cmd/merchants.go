package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/spf13/cobra"
)

var merchantsCmd = &cobra.Command{
	Use:   "merchants",
	Short: "List merchants and whether they are enabled",
	RunE:  runMerchants,
}

func init() {
	merchantsCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(merchantsCmd)
}

func runMerchants(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	merchants := a.registry.List()
	if format, _ := cmd.Flags().GetString("format"); format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]models.MerchantInfo{"merchants": merchants})
	}

	fmt.Fprintf(os.Stdout, "%s %s %s %s\n", padRight("MERCHANT", 12), padRight("ENABLED", 8), padRight("VERSION", 8), "HEADLESS")
	for _, m := range merchants {
		fmt.Fprintf(os.Stdout, "%s %s %s %s\n",
			padRight(m.Name, 12), padRight(yesNo(m.Enabled), 8), padRight(m.Version, 8), yesNo(m.Headless))
	}
	return nil
}
