// Package keyring holds the process secrets: token signing and encryption
// keys, the image obfuscation secret and the upstream credentials.
//
// A Keyring is immutable once built and safe to share between goroutines.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

const (
	EnvDigitKey      = "DIGIT_KEY"
	EnvCryptoKey     = "CRYPTO_KEY"
	EnvImageSecret   = "IMG_SECRET"
	EnvDiscordToken  = "DISCORD_TOKEN"
	EnvWebhookPrefix = "DISCORD_WEBHOOK_URL_"
	EnvS3AccessKey   = "S3_ACCESS_KEY"
	EnvS3SecretKey   = "S3_SECRET_KEY"
)

// Requirement selects which upstream credentials must be present.
type Requirement int

const (
	RequireTokenKeys Requirement = iota
	RequireDiscord
	RequireS3
)

// ErrMissingSecret is wrapped by every missing-variable error.
var ErrMissingSecret = errors.New("missing secret")

// Secrets is the raw material a Keyring is built from.
type Secrets struct {
	DigitKey     string
	CryptoKey    string
	ImageSecret  string
	DiscordToken string
	WebhookURLs  []string
	S3AccessKey  string
	S3SecretKey  string
}

type Keyring struct {
	s Secrets
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingSecret, name)
}

// New validates s against req and freezes it. All problems are reported
// together.
func New(s Secrets, req Requirement) (*Keyring, error) {
	var result *multierror.Error

	if s.DigitKey == "" {
		result = multierror.Append(result, missing(EnvDigitKey))
	}
	if s.CryptoKey == "" {
		result = multierror.Append(result, missing(EnvCryptoKey))
	}
	if s.ImageSecret == "" {
		result = multierror.Append(result, missing(EnvImageSecret))
	}

	switch req {
	case RequireDiscord:
		if s.DiscordToken == "" {
			result = multierror.Append(result, missing(EnvDiscordToken))
		}
		if len(s.WebhookURLs) == 0 {
			result = multierror.Append(result, missing(EnvWebhookPrefix+"1"))
		}
		for i, u := range s.WebhookURLs {
			if u == "" {
				result = multierror.Append(result, missing(EnvWebhookPrefix+strconv.Itoa(i+1)))
			}
		}
	case RequireS3:
		if s.S3AccessKey == "" {
			result = multierror.Append(result, missing(EnvS3AccessKey))
		}
		if s.S3SecretKey == "" {
			result = multierror.Append(result, missing(EnvS3SecretKey))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	s.WebhookURLs = append([]string(nil), s.WebhookURLs...)
	return &Keyring{s: s}, nil
}

// FromEnv reads the secrets from the process environment. Webhook URLs are
// collected from DISCORD_WEBHOOK_URL_1 upwards until the first gap.
func FromEnv() Secrets {
	s := Secrets{
		DigitKey:     os.Getenv(EnvDigitKey),
		CryptoKey:    os.Getenv(EnvCryptoKey),
		ImageSecret:  os.Getenv(EnvImageSecret),
		DiscordToken: os.Getenv(EnvDiscordToken),
		S3AccessKey:  os.Getenv(EnvS3AccessKey),
		S3SecretKey:  os.Getenv(EnvS3SecretKey),
	}
	for i := 1; ; i++ {
		u, ok := os.LookupEnv(EnvWebhookPrefix + strconv.Itoa(i))
		if !ok || u == "" {
			break
		}
		s.WebhookURLs = append(s.WebhookURLs, u)
	}
	return s
}

// Load merges the optional dotenv files into the environment (existing
// variables win) and builds a Keyring from it. Missing files are ignored.
func Load(req Requirement, dotenv ...string) (*Keyring, error) {
	for _, f := range dotenv {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return New(FromEnv(), req)
}

func (k *Keyring) DigitKey() string     { return k.s.DigitKey }
func (k *Keyring) CryptoKey() string    { return k.s.CryptoKey }
func (k *Keyring) ImageSecret() string  { return k.s.ImageSecret }
func (k *Keyring) DiscordToken() string { return k.s.DiscordToken }
func (k *Keyring) S3AccessKey() string  { return k.s.S3AccessKey }
func (k *Keyring) S3SecretKey() string  { return k.s.S3SecretKey }

// WebhookURLs returns a copy of the configured webhook endpoints.
func (k *Keyring) WebhookURLs() []string {
	return append([]string(nil), k.s.WebhookURLs...)
}
