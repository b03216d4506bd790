package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/lukman83/closeshave/internal/models"
	"github.com/lukman83/closeshave/internal/validate"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [query]",
	Short: "Check whether a query is likely to find products",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if strings.TrimSpace(query) == "" {
		return &models.ValidationError{Err: errEmptyQuery}
	}

	a, err := newApp(cmdContext(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	verdict := validate.Permissive()
	if a.validator != nil {
		verdict = a.validator.Validate(cmdContext(cmd), query)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(verdict)
}
