// Package address derives the externally visible address of an entity from
// the public key of the instance that created it.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/network"
	"golang.org/x/crypto/ripemd160"
)

// HashSize is the size of the public key hash carried by an address.
const HashSize = ripemd160.Size

var (
	// ErrInvalidAddress is returned when decoding a malformed address.
	ErrInvalidAddress = errors.New("address: invalid address")
)

// AccountAddress identifies an account or identity on a network.
type AccountAddress struct {
	Network    network.ID
	EntityKind derivation.EntityKind
	Hash       [HashSize]byte
}

// FromPublicKey returns the address of the entity controlled by pubkey.
func FromPublicKey(
	net network.ID,
	entity derivation.EntityKind,
	pubkey []byte,
) AccountAddress {
	addr := AccountAddress{Network: net, EntityKind: entity}
	copy(addr.Hash[:], Hash160(pubkey))
	return addr
}

// Hash160 calculates the hash ripemd160(sha256(b)).
func Hash160(buf []byte) []byte {
	return calcHash(calcHash(buf, sha256.New()), ripemd160.New())
}

// calcHash calculates the hash of hasher over buf.
func calcHash(buf []byte, hasher hash.Hash) []byte {
	hasher.Write(buf)
	return hasher.Sum(nil)
}

// HRP returns the human readable part the address is encoded with.
func (a AccountAddress) HRP() (string, error) {
	n, err := a.Network.Params()
	if err != nil {
		return "", err
	}
	switch a.EntityKind {
	case derivation.Account:
		return n.AccountHRP, nil
	case derivation.Identity:
		return n.IdentityHRP, nil
	default:
		return "", fmt.Errorf("%w: entity kind %s", ErrInvalidAddress, a.EntityKind)
	}
}

// Encode returns the bech32 encoding of the address.
func (a AccountAddress) Encode() (string, error) {
	hrp, err := a.HRP()
	if err != nil {
		return "", err
	}
	data, err := bech32.ConvertBits(a.Hash[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, data)
}

// String returns the bech32 encoding of the address, or its raw hash when
// the network or entity kind is unknown.
func (a AccountAddress) String() string {
	s, err := a.Encode()
	if err != nil {
		return fmt.Sprintf("%s:%x", a.Network, a.Hash)
	}
	return s
}

// Decode parses a bech32 encoded address.
func Decode(addr string) (AccountAddress, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	n, err := network.FromHRP(hrp)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	entity := derivation.Account
	if hrp == n.IdentityHRP {
		entity = derivation.Identity
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if len(decoded) != HashSize {
		return AccountAddress{}, fmt.Errorf(
			"%w: hash must be %d bytes, got %d", ErrInvalidAddress, HashSize, len(decoded),
		)
	}
	a := AccountAddress{Network: n.ID, EntityKind: entity}
	copy(a.Hash[:], decoded)
	return a, nil
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountAddress) MarshalText() ([]byte, error) {
	s, err := a.Encode()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountAddress) UnmarshalText(text []byte) error {
	decoded, err := Decode(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}
