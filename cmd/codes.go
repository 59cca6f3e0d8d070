package cmd

import (
	"os"

	"powerexec/cli/internal/render"

	"github.com/spf13/cobra"
)

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "List the return codes powerexec reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return render.Codes(os.Stdout, output)
	},
}

func init() {
	rootCmd.AddCommand(codesCmd)
}
