// Package envelope implements the end-to-end encryption pipeline. Payloads
// are sealed with NaCl box (X25519 + XSalsa20-Poly1305) under a fresh
// ephemeral sender key per call, so no long-term sender identity is ever
// bound to a ciphertext and envelopes never deduplicate across submissions.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// FormatVersion is the first byte of every serialized envelope. Bump it only
// with a decoder that still accepts every prior version.
const FormatVersion byte = 1

const (
	keySize    = 32
	nonceSize  = 24
	headerSize = 1 + keySize + nonceSize
	// box.Overhead bytes of authenticator follow the header, so an envelope
	// for an empty payload is still headerSize+Overhead bytes.
	minEnvelopeSize = headerSize + box.Overhead
)

// ErrDecryptFailed reports a wrong key, corrupted envelope, or tampered
// ciphertext. Retrying cannot fix any of those, so callers must surface it
// immediately rather than re-entering a retry loop.
var ErrDecryptFailed = errors.New("decryption failed")

// ErrMalformed reports an envelope that does not parse. Distinct from
// ErrDecryptFailed: a malformed envelope never reached the cipher.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is the self-describing package produced by Seal: ephemeral sender
// public key, nonce, ciphertext. Serialization is byte-identical in layout
// regardless of payload content; only the ciphertext length varies, and only
// by the payload length plus the cipher's fixed overhead.
type Envelope struct {
	Version            byte
	EphemeralPublicKey [keySize]byte
	Nonce              [nonceSize]byte
	Ciphertext         []byte
}

// Marshal serializes as version || ephemeral public key || nonce || ciphertext.
func (e Envelope) Marshal() []byte {
	out := make([]byte, 0, headerSize+len(e.Ciphertext))
	out = append(out, e.Version)
	out = append(out, e.EphemeralPublicKey[:]...)
	out = append(out, e.Nonce[:]...)
	out = append(out, e.Ciphertext...)
	return out
}

// Parse decodes a serialized envelope. Hostile input degrades to
// ErrMalformed, never a panic.
func Parse(raw []byte) (Envelope, error) {
	if len(raw) < minEnvelopeSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformed, len(raw), minEnvelopeSize)
	}
	if raw[0] != FormatVersion {
		return Envelope{}, fmt.Errorf("%w: unsupported format version %d", ErrMalformed, raw[0])
	}

	var e Envelope
	e.Version = raw[0]
	copy(e.EphemeralPublicKey[:], raw[1:1+keySize])
	copy(e.Nonce[:], raw[1+keySize:headerSize])
	e.Ciphertext = append([]byte(nil), raw[headerSize:]...)
	return e, nil
}

// IntegrityHash is the short fixed-length digest of a serialized envelope
// that callers record with the ledger alongside the content identifier.
func IntegrityHash(serialized []byte) [32]byte {
	return sha256.Sum256(serialized)
}

// seal encrypts payload for recipientPK under a fresh ephemeral key pair and
// a fresh random nonce. The ephemeral private key is zeroed before return;
// concurrent calls draw independently from crypto/rand, so nonce reuse
// cannot occur even across simultaneous seals.
func seal(payload []byte, recipientPK *[keySize]byte) (Envelope, error) {
	ephemeralPK, ephemeralSK, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	defer zero(ephemeralSK)

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return Envelope{}, fmt.Errorf("draw nonce: %w", err)
	}

	ciphertext := box.Seal(nil, payload, &nonce, recipientPK, ephemeralSK)
	return Envelope{
		Version:            FormatVersion,
		EphemeralPublicKey: *ephemeralPK,
		Nonce:              nonce,
		Ciphertext:         ciphertext,
	}, nil
}

// open decrypts an envelope with the recipient's private key.
func open(e Envelope, recipientSK *[keySize]byte) ([]byte, error) {
	payload, ok := box.Open(nil, e.Ciphertext, &e.Nonce, &e.EphemeralPublicKey, recipientSK)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return payload, nil
}

// zero wipes key material. Deferred on every path that holds an ephemeral
// private key, including abandonment, so the key never outlives the call.
func zero(key *[keySize]byte) {
	for i := range key {
		key[i] = 0
	}
}

// GenerateRecipientKeyPair creates a campaign owner key pair. The private
// key never enters this core's storage; it stays with the researcher.
func GenerateRecipientKeyPair() (publicKey, privateKey *[keySize]byte, err error) {
	return box.GenerateKey(rand.Reader)
}
