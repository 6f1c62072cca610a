// Package cli implements tokenctl, an offline tool that mints and opens
// content tokens and scrambles or restores images with the same secrets
// the server uses.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the tokenctl command tree.
func NewRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "tokenctl",
		Short:         "Mint, open and inspect attachlink content tokens offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile == "" {
				return nil
			}
			if _, err := os.Stat(envFile); err != nil {
				return nil
			}
			return godotenv.Load(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with the secrets; existing variables win")

	root.AddCommand(
		newEncodeCmd(),
		newDecodeCmd(),
		newImageCmd("scramble", "Scramble an image's blocks with IMG_SECRET"),
		newImageCmd("restore", "Undo scramble with the same IMG_SECRET"),
	)
	return root
}
