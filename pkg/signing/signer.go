// Package signing applies and verifies signatures over compiled truth
// states. Compilation never signs; signing is this separate, explicit
// step with an explicit sign time.
package signing

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kaori-protocol/kaori/pkg/canonical"
	"github.com/kaori-protocol/kaori/pkg/truth"
)

// Signing methods.
const (
	MethodLocalHMAC  = "local_hmac"
	MethodAsymmetric = "asymmetric"
)

// Signer signs a compiled TruthState and verifies signed ones.
type Signer interface {
	// Sign recomputes both hashes, signs the state hash, and populates
	// the security block with the explicit sign time.
	Sign(state *truth.TruthState, signTime time.Time) error
	// Verify recomputes both hashes and checks the signature in constant
	// time.
	Verify(state truth.TruthState) (bool, error)
	// KeyID identifies the signing key; the value is host-owned.
	KeyID() string
}

// HMACSigner implements local_hmac: HMAC-SHA256 over the state hash.
type HMACSigner struct {
	key   []byte
	keyID string
}

// NewHMACSigner creates a signer around a shared secret.
func NewHMACSigner(key []byte, keyID string) *HMACSigner {
	return &HMACSigner{key: key, keyID: keyID}
}

func (s *HMACSigner) KeyID() string { return s.keyID }

func (s *HMACSigner) Sign(state *truth.TruthState, signTime time.Time) error {
	semanticHash, stateHash, err := recomputeHashes(state)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(stateHash))

	state.Security = truth.SecurityBlock{
		SemanticHash:  semanticHash,
		StateHash:     stateHash,
		Signature:     hex.EncodeToString(mac.Sum(nil)),
		SigningMethod: MethodLocalHMAC,
		KeyID:         s.keyID,
		SignedAt:      canonical.NewTime(signTime),
	}
	return nil
}

func (s *HMACSigner) Verify(state truth.TruthState) (bool, error) {
	ok, err := state.VerifyHashes()
	if err != nil || !ok {
		return false, err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(state.Security.StateHash))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(state.Security.Signature)), nil
}

// Ed25519Signer implements asymmetric: an Ed25519 signature over
// SHA256(state_hash).
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	keyID   string
}

// NewEd25519Signer generates a fresh keypair.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub, keyID: keyID}, nil
}

// NewEd25519SignerFromKey wraps an existing private key.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey, keyID string) *Ed25519Signer {
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		keyID:   keyID,
	}
}

func (s *Ed25519Signer) KeyID() string { return s.keyID }

// PublicKey returns the hex-encoded public key.
func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

func (s *Ed25519Signer) Sign(state *truth.TruthState, signTime time.Time) error {
	semanticHash, stateHash, err := recomputeHashes(state)
	if err != nil {
		return err
	}
	digest := sha256.Sum256([]byte(stateHash))
	sig := ed25519.Sign(s.privKey, digest[:])

	state.Security = truth.SecurityBlock{
		SemanticHash:  semanticHash,
		StateHash:     stateHash,
		Signature:     hex.EncodeToString(sig),
		SigningMethod: MethodAsymmetric,
		KeyID:         s.keyID,
		SignedAt:      canonical.NewTime(signTime),
	}
	return nil
}

func (s *Ed25519Signer) Verify(state truth.TruthState) (bool, error) {
	ok, err := state.VerifyHashes()
	if err != nil || !ok {
		return false, err
	}
	return VerifyEd25519(s.PublicKey(), state.Security.Signature, state.Security.StateHash)
}

// VerifyEd25519 checks an asymmetric truth state signature against a
// hex-encoded public key.
func VerifyEd25519(pubKeyHex, sigHex, stateHash string) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	digest := sha256.Sum256([]byte(stateHash))
	return ed25519.Verify(ed25519.PublicKey(pubKey), digest[:], sig), nil
}

// ConstantTimeEqualHex compares two hex digests without leaking timing.
func ConstantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func recomputeHashes(state *truth.TruthState) (string, string, error) {
	semanticHash, err := state.ComputeSemanticHash()
	if err != nil {
		return "", "", fmt.Errorf("semantic hash: %w", err)
	}
	stateHash, err := state.ComputeStateHash()
	if err != nil {
		return "", "", fmt.Errorf("state hash: %w", err)
	}
	return semanticHash, stateHash, nil
}
