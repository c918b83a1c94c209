// Package signature provides helper functions for handling the signature
// needs of custody members: secp256k1 (K1) and secp256r1 (R1) keys, and
// passkey assertions over R1 keys.
package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Lengths of compressed public keys and compact signatures.
const (
	PublicKeyLength = 33
	SignatureLength = 64
)

// Set of error variables for signing and verification.
var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidSignature = errors.New("invalid signature")
)

// =============================================================================

// Message returns the 32 byte message a member signs: the hash of the
// delegated puzzle hash and the binding. The binding is the coin id of the
// spending coin, or its puzzle hash for the fast forward members that
// follow the coin across descendants with the same puzzle.
func Message(delegatedPuzzleHash [32]byte, binding [32]byte) [32]byte {
	h := sha256.New()
	h.Write(delegatedPuzzleHash[:])
	h.Write(binding[:])

	var msg [32]byte
	copy(msg[:], h.Sum(nil))
	return msg
}

// =============================================================================

// K1PublicKey returns the compressed secp256k1 public key.
func K1PublicKey(privateKey *ecdsa.PrivateKey) []byte {
	return crypto.CompressPubkey(&privateKey.PublicKey)
}

// SignK1 signs the prehashed message with a secp256k1 key and returns the
// compact [R|S] signature.
func SignK1(msg [32]byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Sign the hash with the private key to produce a [R|S|V] signature.
	sig, err := crypto.Sign(msg[:], privateKey)
	if err != nil {
		return nil, err
	}

	// Check the signature recovers to the signing key.
	publicKey, err := crypto.SigToPub(msg[:], sig)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), msg[:], sig[:crypto.RecoveryIDOffset]) {
		return nil, ErrInvalidSignature
	}

	return sig[:crypto.RecoveryIDOffset], nil
}

// VerifyK1 verifies a compact signature of the message against a
// compressed secp256k1 public key.
func VerifyK1(publicKey []byte, msg [32]byte, sig []byte) error {
	if len(publicKey) != PublicKeyLength {
		return ErrInvalidPublicKey
	}
	if len(sig) != SignatureLength {
		return ErrInvalidSignature
	}

	if !crypto.VerifySignature(publicKey, msg[:], sig) {
		return ErrInvalidSignature
	}

	return nil
}

// =============================================================================

// GenerateR1 returns a new secp256r1 key.
func GenerateR1() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// R1PublicKey returns the compressed secp256r1 public key.
func R1PublicKey(privateKey *ecdsa.PrivateKey) []byte {
	return elliptic.MarshalCompressed(elliptic.P256(), privateKey.X, privateKey.Y)
}

// SignR1 signs the prehashed message with a secp256r1 key and returns the
// compact [R|S] signature with a low S value.
func SignR1(msg [32]byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, privateKey, msg[:])
	if err != nil {
		return nil, err
	}

	n := elliptic.P256().Params().N
	if s.Cmp(new(big.Int).Rsh(n, 1)) > 0 {
		s.Sub(n, s)
	}

	sig := make([]byte, SignatureLength)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])

	return sig, nil
}

// VerifyR1 verifies a compact signature of the message against a
// compressed secp256r1 public key.
func VerifyR1(publicKey []byte, msg [32]byte, sig []byte) error {
	if len(sig) != SignatureLength {
		return ErrInvalidSignature
	}

	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), publicKey)
	if x == nil {
		return ErrInvalidPublicKey
	}

	pub := ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])

	if !ecdsa.Verify(&pub, msg[:], r, s) {
		return ErrInvalidSignature
	}

	return nil
}

// =============================================================================

// PasskeyChallenge returns the challenge a browser embeds in the client
// data of a passkey assertion over the message.
func PasskeyChallenge(msg [32]byte) string {
	return base64.RawURLEncoding.EncodeToString(msg[:])
}

// PasskeyMessage returns the message the authenticator signs: the hash of
// the authenticator data and the hash of the client data.
func PasskeyMessage(authenticatorData []byte, clientDataJSON []byte) [32]byte {
	client := sha256.Sum256(clientDataJSON)

	h := sha256.New()
	h.Write(authenticatorData)
	h.Write(client[:])

	var msg [32]byte
	copy(msg[:], h.Sum(nil))
	return msg
}

// =============================================================================

// Encode returns the 0x prefixed hex form of a key or signature.
func Encode(b []byte) string {
	return hexutil.Encode(b)
}

// Decode parses the 0x prefixed hex form of a key or signature.
func Decode(s string) ([]byte, error) {
	return hexutil.Decode(s)
}
