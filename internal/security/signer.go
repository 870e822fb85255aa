// Package security signs computed metric payloads so downstream dashboards
// can verify they were produced by this service and not altered in transit.
package security

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Signer produces secp256k1 signatures over keccak256 payload hashes, the
// same scheme the chain tooling already understands.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// SignedPayload wraps a JSON payload with its signature metadata.
type SignedPayload struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	Signer    string          `json:"signer"`
	SignedAt  int64           `json:"signed_at"`
}

// NewSigner generates a fresh signing key for this process lifetime.
func NewSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	logrus.Infof("Metrics signer initialized, address %s", address.Hex())

	return &Signer{key: key, address: address}, nil
}

// Sign serializes the payload, hashes it with keccak256, and signs the hash.
func (s *Signer) Sign(payload interface{}) (*SignedPayload, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	hash := crypto.Keccak256(raw)
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	return &SignedPayload{
		Payload:   raw,
		Signature: hex.EncodeToString(sig),
		Signer:    s.address.Hex(),
		SignedAt:  time.Now().Unix(),
	}, nil
}

// Address returns the signer's public address for out-of-band verification.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// Verify checks a signed payload's signature against its embedded signer
// address. Returns an error when the signature does not recover to it.
func Verify(sp *SignedPayload) error {
	sig, err := hex.DecodeString(sp.Signature)
	if err != nil {
		return fmt.Errorf("malformed signature encoding: %w", err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("unexpected signature length: %d", len(sig))
	}

	hash := crypto.Keccak256(sp.Payload)
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != common.HexToAddress(sp.Signer) {
		return fmt.Errorf("signature recovers to %s, payload claims %s",
			recovered.Hex(), sp.Signer)
	}
	return nil
}
