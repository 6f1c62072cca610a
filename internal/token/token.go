// Package token turns a content descriptor into a compact, tamper-evident
// pair of strings and back.
//
// The encrypted part is URL-safe base64 of an OpenSSL "Salted__" passphrase
// ciphertext; the digit is a hex HMAC-SHA256 over the same plaintext. Tokens
// are stateless: every check needed to trust one happens in Decode.
package token

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/cryptox"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
)

// Token is what callers hold in place of the content.
type Token struct {
	Digit     string `json:"digit"`
	Encrypted string `json:"encrypted"`
}

// Path returns the retrieval path for the token.
func (t Token) Path() string {
	return "/" + t.Digit + "/" + t.Encrypted
}

// Keys are the two secrets a Codec needs.
type Keys interface {
	DigitKey() string
	CryptoKey() string
}

type Codec struct {
	digitKey  string
	cryptoKey string
	now       func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(keys Keys, opts ...Option) *Codec {
	c := &Codec{
		digitKey:  keys.DigitKey(),
		cryptoKey: keys.CryptoKey(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Encode signs and encrypts the canonical serialization of d.
func (c *Codec) Encode(d descriptor.Descriptor) (Token, error) {
	plain, err := d.Marshal()
	if err != nil {
		return Token{}, fmt.Errorf("marshal descriptor: %w", err)
	}

	sealed, err := cryptox.EncryptPassphrase(plain, c.cryptoKey)
	if err != nil {
		return Token{}, fmt.Errorf("encrypt descriptor: %w", err)
	}

	return Token{
		Digit:     cryptox.Digit(plain, c.digitKey),
		Encrypted: cryptox.Base64URLEncode([]byte(sealed)),
	}, nil
}

// Decode authenticates the token before looking at its content.
//
// Any failure to unwrap or decrypt is reported as ErrInvalidSignature, the
// same error a digit mismatch gives. A genuine token then fails with
// ErrMalformedDescriptor, ErrInvalidExpiry or ErrTokenExpired.
func (c *Codec) Decode(digit, encrypted string) (descriptor.Descriptor, error) {
	plain, err := c.open(encrypted)
	if err != nil {
		return descriptor.Descriptor{}, common.ErrInvalidSignature
	}
	if !cryptox.VerifyDigit(plain, c.digitKey, digit) {
		return descriptor.Descriptor{}, common.ErrInvalidSignature
	}

	d, err := descriptor.Parse(plain)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	if err := d.CheckExpiry(c.now()); err != nil {
		return descriptor.Descriptor{}, err
	}
	return d, nil
}

func (c *Codec) open(encrypted string) ([]byte, error) {
	inner, err := cryptox.Base64URLDecode(encrypted)
	if err != nil {
		return nil, err
	}
	return cryptox.DecryptPassphrase(string(inner), c.cryptoKey)
}
