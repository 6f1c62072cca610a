package descriptor

import (
	"errors"
	"math/big"
	"strings"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	ErrInvalidCompactID = errors.New("invalid compact id")

	base62 = big.NewInt(int64(len(base62Alphabet)))
)

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EncodeID shortens a decimal platform id to Base62. Non-decimal input is
// returned unchanged, as is any id whose Base62 form would be all digits:
// DecodeID treats an all-digit string as decimal.
func EncodeID(id string) string {
	n, ok := new(big.Int).SetString(id, 10)
	if !isDecimal(id) || !ok || n.Sign() == 0 {
		return id
	}

	var sb []byte
	mod := new(big.Int)
	for n.Sign() > 0 {
		n.DivMod(n, base62, mod)
		sb = append(sb, base62Alphabet[mod.Int64()])
	}
	for i, j := 0, len(sb)-1; i < j; i, j = i+1, j-1 {
		sb[i], sb[j] = sb[j], sb[i]
	}

	encoded := string(sb)
	if isDecimal(encoded) {
		return id
	}
	return encoded
}

// DecodeID returns the decimal form of an id produced by EncodeID.
func DecodeID(s string) (string, error) {
	if isDecimal(s) {
		return s, nil
	}
	if s == "" {
		return "", ErrInvalidCompactID
	}

	n := new(big.Int)
	for _, r := range s {
		i := strings.IndexRune(base62Alphabet, r)
		if i < 0 {
			return "", ErrInvalidCompactID
		}
		n.Mul(n, base62)
		n.Add(n, big.NewInt(int64(i)))
	}
	if n.Sign() == 0 {
		return "", ErrInvalidCompactID
	}
	return n.String(), nil
}

// DecodeLocator expands compact ids in a locator.
func DecodeLocator(l Locator) (Locator, error) {
	ch, err := DecodeID(l.ChannelID)
	if err != nil {
		return Locator{}, err
	}
	msg, err := DecodeID(l.MessageID)
	if err != nil {
		return Locator{}, err
	}
	return Locator{ChannelID: ch, MessageID: msg, ContentName: l.ContentName}, nil
}
