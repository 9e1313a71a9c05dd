package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair is a custodial agent wallet: an ed25519 keypair whose
// public key, base58-encoded, is the ledger address.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// Issue generates a fresh keypair.
func Issue() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{pub: pub, priv: priv}, nil
}

// FromSecret reconstructs a keypair from the 64-byte secret form.
func FromSecret(secret []byte) (Keypair, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("secret key length %d, want %d", len(secret), ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(append([]byte(nil), secret...))
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return Keypair{}, fmt.Errorf("derive public key")
	}
	return Keypair{pub: pub, priv: priv}, nil
}

// FromBase58Secret parses a base58-encoded 64-byte secret key, the
// form operators use for the hot wallet in the environment.
func FromBase58Secret(s string) (Keypair, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Keypair{}, fmt.Errorf("decode secret: %w", err)
	}
	return FromSecret(raw)
}

// Address is the base58 public key.
func (k Keypair) Address() string {
	return base58.Encode(k.pub)
}

// Secret is the 64-byte private key material handed to the sealer.
func (k Keypair) Secret() []byte {
	return append([]byte(nil), k.priv...)
}

// Sign signs a ledger submission payload.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// IsZero reports whether the keypair is unset.
func (k Keypair) IsZero() bool {
	return len(k.priv) == 0
}

// ValidAddress reports whether s decodes to a 32-byte base58 key.
func ValidAddress(s string) bool {
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == ed25519.PublicKeySize
}
