package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultKey seals slot references when SLOT_TOKEN_KEY is not configured.
	DefaultKey = "Ip6IfTxeGDqxmGcdytYmX4ilykaj8/OSVlSb0VSZi64="
)

// Sealer produces opaque slot reference tokens so clients never see or
// forge raw facility/slot identifiers.
type Sealer struct {
	aead cipher.AEAD
}

func New(encodedKey string) (*Sealer, error) {
	if encodedKey == "" {
		encodedKey = DefaultKey
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decoding sealer key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead}, nil
}

// SealSlotRef encrypts a facility slot into an opaque URL-safe token.
func (s *Sealer) SealSlotRef(facility string, slotStart, slotEnd time.Time) (string, error) {
	plaintext := []byte(facility + "|" +
		strconv.FormatInt(slotStart.Unix(), 10) + "|" +
		strconv.FormatInt(slotEnd.Unix(), 10))

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// OpenSlotRef decrypts a token produced by SealSlotRef. Times come back in UTC.
func (s *Sealer) OpenSlotRef(token string) (string, time.Time, time.Time, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("invalid slot reference")
	}

	nonceSize := s.aead.NonceSize()
	if len(data) <= nonceSize {
		return "", time.Time{}, time.Time{}, fmt.Errorf("invalid slot reference")
	}

	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("invalid slot reference")
	}

	parts := strings.SplitN(string(pt), "|", 3)
	if len(parts) != 3 || parts[0] == "" {
		return "", time.Time{}, time.Time{}, fmt.Errorf("invalid slot reference")
	}

	startUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("invalid slot reference")
	}

	endUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("invalid slot reference")
	}

	return parts[0], time.Unix(startUnix, 0).UTC(), time.Unix(endUnix, 0).UTC(), nil
}
