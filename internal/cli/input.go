package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/attachlink/internal/common"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// stdinFd is the descriptor handed to readPassword.
var stdinFd = func() int { return int(os.Stdin.Fd()) }

// secret returns the value of env, or asks for it on the terminal without
// echo when the variable is unset.
func secret(env string, w io.Writer) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	if _, err := fmt.Fprintf(w, "Enter %s: ", env); err != nil {
		return "", err
	}
	b, err := readPassword(stdinFd())
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", env, err)
	}
	defer common.WipeByteArray(b)

	v := strings.TrimSpace(string(b))
	if v == "" {
		return "", fmt.Errorf("%s is empty", env)
	}
	return v, nil
}

type tokenKeys struct {
	digit, crypto string
}

func (k tokenKeys) DigitKey() string  { return k.digit }
func (k tokenKeys) CryptoKey() string { return k.crypto }
