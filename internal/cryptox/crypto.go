// Package cryptox holds the primitives behind content tokens: passphrase
// AES-256-CBC in the OpenSSL "Salted__" format, the HMAC-SHA256 digit and the
// URL-safe text encoding used in token paths.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dmitrijs2005/attachlink/internal/common"
)

const (
	saltedPrefix = "Salted__"
	saltSize     = 8
	keySize      = 32
)

var (
	ErrCiphertextFormat = errors.New("ciphertext is not in salted format")
	ErrCiphertextSize   = errors.New("ciphertext is not a multiple of the block size")
	ErrPadding          = errors.New("invalid padding")
)

// deriveKeyIV implements OpenSSL's EVP_BytesToKey with MD5 and a single
// iteration, which is what passphrase-based AES in crypto-js and
// `openssl enc -md md5` use.
func deriveKeyIV(passphrase, salt []byte) (key, iv []byte) {
	var (
		derived []byte
		prev    []byte
	)
	for len(derived) < keySize+aes.BlockSize {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keySize], derived[keySize : keySize+aes.BlockSize]
}

func pkcs7Pad(data []byte) []byte {
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	return append(append(make([]byte, 0, len(data)+padLen), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrPadding
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, ErrPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrPadding
		}
	}
	return data[:len(data)-padLen], nil
}

// EncryptPassphrase encrypts plaintext with AES-256-CBC under a key and IV
// derived from passphrase and a fresh 8-byte salt.
//
// The result is the standard base64 of "Salted__" ‖ salt ‖ ciphertext, the
// same string crypto-js AES.encrypt(data, passphrase).toString() produces,
// so either side can open what the other sealed.
//
// Example:
//
//	s, err := EncryptPassphrase([]byte(`{"channelId":"1"}`), "crypto-secret")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(s) // "U2FsdGVkX1..."
func EncryptPassphrase(plaintext []byte, passphrase string) (string, error) {
	salt := common.GenerateRandByteArray(saltSize)
	return encryptWithSalt(plaintext, passphrase, salt)
}

func encryptWithSalt(plaintext []byte, passphrase string, salt []byte) (string, error) {
	key, iv := deriveKeyIV([]byte(passphrase), salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext)
	out := make([]byte, len(saltedPrefix)+saltSize+len(padded))
	copy(out, saltedPrefix)
	copy(out[len(saltedPrefix):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltedPrefix)+saltSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptPassphrase reverses EncryptPassphrase.
//
// A wrong passphrase usually surfaces as ErrPadding, but not always: CBC
// decryption with the wrong key can yield validly padded garbage. Callers
// must authenticate the plaintext separately (see Digit).
func DecryptPassphrase(encoded string, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) < len(saltedPrefix)+saltSize || string(raw[:len(saltedPrefix)]) != saltedPrefix {
		return nil, ErrCiphertextFormat
	}

	salt := raw[len(saltedPrefix) : len(saltedPrefix)+saltSize]
	ciphertext := raw[len(saltedPrefix)+saltSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextSize
	}

	key, iv := deriveKeyIV([]byte(passphrase), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

// Digit returns the lowercase hex HMAC-SHA256 of data keyed by key.
func Digit(data []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyDigit recomputes the digit over data and compares it with the
// supplied one in constant time.
func VerifyDigit(data []byte, key, digit string) bool {
	return hmac.Equal([]byte(Digit(data, key)), []byte(digit))
}

// Base64URLEncode encodes b with the URL-safe alphabet and no padding.
func Base64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// Base64URLDecode accepts URL-safe base64 with or without trailing padding.
func Base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
