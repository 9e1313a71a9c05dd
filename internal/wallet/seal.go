package wallet

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encodes wallet secret material for at-rest storage in the
// record store and decodes it back. The salt is the wallet address;
// a sealed blob only opens with the address it was sealed under.
type Sealer interface {
	Seal(secret []byte, salt string) (string, error)
	Unseal(blob string, salt string) ([]byte, error)
}

// AEADSealer is the production sealer: XChaCha20-Poly1305 with the
// wallet address as additional data and a random nonce prepended to
// the ciphertext. The key is held outside the record store; anyone
// with read access to stored blobs but not the key learns nothing.
type AEADSealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

func NewAEADSealer(key []byte) (*AEADSealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}
	return &AEADSealer{aead: aead}, nil
}

func (s *AEADSealer) Seal(secret []byte, salt string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, secret, []byte(salt))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *AEADSealer) Unseal(blob string, salt string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("unseal: blob too short")
	}
	nonce, ct := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	secret, err := s.aead.Open(nil, nonce, ct, []byte(salt))
	if err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}
	return secret, nil
}

// LegacyCodec is the original reversible encoding:
// base64(json(byte array) + ":" + salt). It is obfuscation, not
// encryption — anyone who can read the record store can reverse it.
// Kept for dev use and for reading blobs written before the AEAD
// sealer existed; new deployments should configure a seal key.
type LegacyCodec struct{}

func (LegacyCodec) Seal(secret []byte, salt string) (string, error) {
	ints := make([]int, len(secret))
	for i, b := range secret {
		ints[i] = int(b)
	}
	j, err := json.Marshal(ints)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(append(append(j, ':'), salt...)), nil
}

func (LegacyCodec) Unseal(blob string, _ string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}
	head, _, found := bytes.Cut(raw, []byte(":"))
	if !found {
		head = raw
	}
	var ints []int
	if err := json.Unmarshal(head, &ints); err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}
	secret := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("unseal: byte out of range")
		}
		secret[i] = byte(v)
	}
	return secret, nil
}
