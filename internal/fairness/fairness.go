// Package fairness implements the commit-then-reveal protocol that keeps
// the dealer honest. Both parties generate a secret seed, publish only its
// SHA-256 digest before any card is dealt, and reveal the seed after the
// round settles. The deck is derived from both seeds, so neither party can
// steer the shuffle without breaking its own commitment.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// SeedSize is the length of a party's secret seed in bytes
	SeedSize = 16
	// CommitmentSize is the length of a published digest in bytes
	CommitmentSize = sha256.Size
	// PubKeySize is the length of a player's session public key in bytes
	PubKeySize = 32
)

// Seed is a party's secret seed
type Seed [SeedSize]byte

// Commitment is the published SHA-256 digest of a seed
type Commitment [CommitmentSize]byte

// PubKey identifies a player session
type PubKey [PubKeySize]byte

// Entropy supplies cryptographically secure random bytes. Production code
// uses crypto/rand via Secure; tests inject deterministic readers.
type Entropy interface {
	io.Reader
}

// Secure returns the production entropy source. crypto/rand is safe for
// concurrent use across rounds.
func Secure() Entropy {
	return rand.Reader
}

// NewSeed draws a fresh seed from the entropy source
func NewSeed(src Entropy) (Seed, error) {
	var s Seed
	if _, err := io.ReadFull(src, s[:]); err != nil {
		return Seed{}, fmt.Errorf("fairness: generating seed: %w", err)
	}
	return s, nil
}

// NewPubKey draws a fresh session public key from the entropy source
func NewPubKey(src Entropy) (PubKey, error) {
	var k PubKey
	if _, err := io.ReadFull(src, k[:]); err != nil {
		return PubKey{}, fmt.Errorf("fairness: generating pubkey: %w", err)
	}
	return k, nil
}

// Commit returns the digest a party publishes before the deal
func Commit(seed Seed) Commitment {
	return sha256.Sum256(seed[:])
}

// CommitmentMismatchError reports a revealed seed whose digest does not
// match the commitment published before the deal. This is a fraud signal,
// not a usage error: the round must be treated as disputed.
type CommitmentMismatchError struct {
	Want Commitment
	Got  Commitment
}

func (e *CommitmentMismatchError) Error() string {
	return fmt.Sprintf("fairness: commitment mismatch: committed %s, revealed seed hashes to %s",
		e.Want, e.Got)
}

// Verify checks a revealed seed against its earlier commitment
func Verify(c Commitment, seed Seed) error {
	got := Commit(seed)
	if got != c {
		return &CommitmentMismatchError{Want: c, Got: got}
	}
	return nil
}

// Combine concatenates both seeds into the deck key material. Dealer seed
// first; the order is part of the protocol and verifiers must match it.
func Combine(dealer, player Seed) []byte {
	material := make([]byte, 0, 2*SeedSize)
	material = append(material, dealer[:]...)
	material = append(material, player[:]...)
	return material
}

// String returns the seed as lowercase hex
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// ParseSeed decodes a hex seed as sent on the wire
func ParseSeed(s string) (Seed, error) {
	var seed Seed
	b, err := hex.DecodeString(s)
	if err != nil {
		return Seed{}, fmt.Errorf("fairness: parsing seed: %w", err)
	}
	if len(b) != SeedSize {
		return Seed{}, fmt.Errorf("fairness: seed must be %d bytes, got %d", SeedSize, len(b))
	}
	copy(seed[:], b)
	return seed, nil
}

// String returns the commitment as lowercase hex
func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// ParseCommitment decodes a hex commitment as sent on the wire
func ParseCommitment(s string) (Commitment, error) {
	var c Commitment
	b, err := hex.DecodeString(s)
	if err != nil {
		return Commitment{}, fmt.Errorf("fairness: parsing commitment: %w", err)
	}
	if len(b) != CommitmentSize {
		return Commitment{}, fmt.Errorf("fairness: commitment must be %d bytes, got %d", CommitmentSize, len(b))
	}
	copy(c[:], b)
	return c, nil
}

// String returns the public key as lowercase hex
func (k PubKey) String() string {
	return hex.EncodeToString(k[:])
}

// ParsePubKey decodes a hex public key as sent on the wire
func ParsePubKey(s string) (PubKey, error) {
	var k PubKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return PubKey{}, fmt.Errorf("fairness: parsing pubkey: %w", err)
	}
	if len(b) != PubKeySize {
		return PubKey{}, fmt.Errorf("fairness: pubkey must be %d bytes, got %d", PubKeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}
