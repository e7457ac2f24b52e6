// Package instance defines derived factor instances, the keyspace checked
// wrappers around them and the collections a derivation scan accumulates.
package instance

import (
	"cmp"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
)

var (
	// ErrFactorSourceMismatch is returned when an instance claims a factor
	// source other than the one of its derivation path.
	ErrFactorSourceMismatch = errors.New("instance: factor source id mismatch")
	// ErrInvalidPublicKey is returned when a public key does not parse.
	ErrInvalidPublicKey = errors.New("instance: invalid public key")
)

// PublicKey is a compressed secp256k1 public key.
type PublicKey [btcec.PubKeyBytesLenCompressed]byte

// ParsePublicKey validates a compressed or uncompressed secp256k1 key and
// returns its compressed form.
func ParsePublicKey(b []byte) (PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	var pk PublicKey
	copy(pk[:], key.SerializeCompressed())
	return pk, nil
}

// PublicKeyFromHex parses a hex encoded public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err)
	}
	return ParsePublicKey(b)
}

// Bytes returns the serialized key.
func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// FactorInstance is a public key derived by a factor source at a path.
type FactorInstance struct {
	Path           derivation.Path
	PublicKey      PublicKey
	FactorSourceID factorsource.ID
}

// New returns the instance of pubkey at path. The id must be the one the
// path is derived for.
func New(path derivation.Path, pubkey PublicKey, id factorsource.ID) (FactorInstance, error) {
	if path.FactorSourceID != id {
		return FactorInstance{}, fmt.Errorf(
			"%w: path has %s, instance has %s", ErrFactorSourceMismatch, path.FactorSourceID, id,
		)
	}
	return FactorInstance{Path: path, PublicKey: pubkey, FactorSourceID: id}, nil
}

// FromPath returns the instance of pubkey at path, owned by the path's
// factor source.
func FromPath(path derivation.Path, pubkey PublicKey) FactorInstance {
	return FactorInstance{Path: path, PublicKey: pubkey, FactorSourceID: path.FactorSourceID}
}

// Request returns the abstract request the instance answers.
func (fi FactorInstance) Request() derivation.Request {
	return fi.Path.InKeySpace()
}

// KeySpace returns the keyspace of the instance index.
func (fi FactorInstance) KeySpace() derivation.KeySpace {
	return fi.Path.Index.KeySpace()
}

func (fi FactorInstance) String() string {
	return fmt.Sprintf("%s@%s", fi.PublicKey, fi.Path)
}

// Unsecurified is an instance whose index lies in the unsecurified keyspace.
type Unsecurified struct {
	inner FactorInstance
}

// CompareIndex orders instances by the raw index of their path.
func CompareIndex(a, b FactorInstance) int {
	return cmp.Compare(a.Path.Index.Raw(), b.Path.Index.Raw())
}

// NewUnsecurified wraps fi, failing with derivation.ErrInvalidKeySpace if
// its index is securified.
func NewUnsecurified(fi FactorInstance) (Unsecurified, error) {
	if !derivation.IsInKeySpace(fi.Path.Index.Raw(), derivation.Unsecurified) {
		return Unsecurified{}, fmt.Errorf(
			"%w: %s is not unsecurified", derivation.ErrInvalidKeySpace, fi.Path,
		)
	}
	return Unsecurified{inner: fi}, nil
}

// MustUnsecurified is like NewUnsecurified but panics on error.
func MustUnsecurified(fi FactorInstance) Unsecurified {
	u, err := NewUnsecurified(fi)
	if err != nil {
		panic(err)
	}
	return u
}

// Instance returns the wrapped instance.
func (u Unsecurified) Instance() FactorInstance { return u.inner }

// FactorSourceID returns the id of the source the instance is derived by.
func (u Unsecurified) FactorSourceID() factorsource.ID { return u.inner.FactorSourceID }

// PublicKey returns the public key of the instance.
func (u Unsecurified) PublicKey() PublicKey { return u.inner.PublicKey }

// Path returns the derivation path of the instance.
func (u Unsecurified) Path() derivation.Path { return u.inner.Path }

// Securified is an instance whose index lies in the securified keyspace.
type Securified struct {
	inner FactorInstance
}

// NewSecurified wraps fi, failing with derivation.ErrInvalidKeySpace if its
// index is unsecurified.
func NewSecurified(fi FactorInstance) (Securified, error) {
	if !derivation.IsInKeySpace(fi.Path.Index.Raw(), derivation.Securified) {
		return Securified{}, fmt.Errorf(
			"%w: %s is not securified", derivation.ErrInvalidKeySpace, fi.Path,
		)
	}
	return Securified{inner: fi}, nil
}

// MustSecurified is like NewSecurified but panics on error.
func MustSecurified(fi FactorInstance) Securified {
	s, err := NewSecurified(fi)
	if err != nil {
		panic(err)
	}
	return s
}

// Instance returns the wrapped instance.
func (s Securified) Instance() FactorInstance { return s.inner }

// FactorSourceID returns the id of the source the instance is derived by.
func (s Securified) FactorSourceID() factorsource.ID { return s.inner.FactorSourceID }

// PublicKey returns the public key of the instance.
func (s Securified) PublicKey() PublicKey { return s.inner.PublicKey }

// Path returns the derivation path of the instance.
func (s Securified) Path() derivation.Path { return s.inner.Path }
