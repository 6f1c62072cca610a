package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/keyring"
	"github.com/dmitrijs2005/attachlink/internal/token"
)

func codecFromEnv(w io.Writer) (*token.Codec, error) {
	digit, err := secret(keyring.EnvDigitKey, w)
	if err != nil {
		return nil, err
	}
	crypto, err := secret(keyring.EnvCryptoKey, w)
	if err != nil {
		return nil, err
	}
	return token.NewCodec(tokenKeys{digit: digit, crypto: crypto}), nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

type encodeOutput struct {
	token.Token
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

func newEncodeCmd() *cobra.Command {
	var (
		in      string
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Mint a token from a JSON descriptor read from --in or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			d, err := descriptor.Parse(raw)
			if err != nil {
				return err
			}
			if _, _, err := d.ExpiresAt(); err != nil {
				return err
			}

			codec, err := codecFromEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tok, err := codec.Encode(d)
			if err != nil {
				return err
			}

			out := encodeOutput{Token: tok, Path: tok.Path()}
			if baseURL != "" {
				out.URL = strings.TrimRight(baseURL, "/") + tok.Path()
			}
			return writeIndented(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "descriptor file; stdin when empty or -")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "prefix printed in front of the token path")
	return cmd
}

// splitToken accepts "digit encrypted", "/digit/encrypted" or a full URL.
func splitToken(args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	p := args[0]
	if u, err := url.Parse(p); err == nil && u.Scheme != "" {
		p = u.Path
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: expected <digit> <encrypted> or a token path", common.ErrBadRequest)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <digit> <encrypted> | decode <path-or-url>",
		Short: "Verify a token and print the descriptor it carries",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			digit, encrypted, err := splitToken(args)
			if err != nil {
				return err
			}
			codec, err := codecFromEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			d, err := codec.Decode(digit, encrypted)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), d)
		},
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
