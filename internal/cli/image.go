package cli

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/attachlink/internal/keyring"
	"github.com/dmitrijs2005/attachlink/internal/obfuscate"
)

// imageType prefers an explicit type, then the file extension, then
// content sniffing.
func imageType(explicit, path string, data []byte) string {
	if explicit != "" {
		return explicit
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func newImageCmd(name, short string) *cobra.Command {
	var (
		in, out, mimeType string
		quality           int
	)
	apply := obfuscate.Scramble
	if name == "restore" {
		apply = obfuscate.Restore
	}

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			key, err := secret(keyring.EnvImageSecret, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			result, err := apply(data, imageType(mimeType, in, data), key, obfuscate.WithJPEGQuality(quality))
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(result)
				return err
			}
			if err := os.WriteFile(out, result, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input image; stdin when empty or -")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file; stdout when empty or -")
	cmd.Flags().StringVarP(&mimeType, "type", "t", "", "image MIME type; guessed from the name or content when empty")
	cmd.Flags().IntVarP(&quality, "quality", "q", 95, "JPEG quality")
	return cmd
}
