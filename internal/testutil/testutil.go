// Package testutil builds deterministic keys and instances for tests.
package testutil

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/network"
)

// PublicKey returns the public key of the private scalar seed+1.
func PublicKey(seed uint64) instance.PublicKey {
	var scalar [32]byte
	binary.BigEndian.PutUint64(scalar[24:], seed+1)
	_, pub := btcec.PrivKeyFromBytes(scalar[:])
	var pk instance.PublicKey
	copy(pk[:], pub.SerializeCompressed())
	return pk
}

// FactorSourceID returns a distinct id per n.
func FactorSourceID(kind factorsource.Kind, n byte) factorsource.ID {
	return factorsource.ID{Kind: kind, Body: [32]byte{n}}
}

// FactorSource returns a distinct source per n.
func FactorSource(kind factorsource.Kind, n byte) factorsource.FactorSource {
	return factorsource.New(FactorSourceID(kind, n), kind.String())
}

// Request returns the mainnet account transaction signing request of id in
// space.
func Request(id factorsource.ID, space derivation.KeySpace) derivation.Request {
	return derivation.NewRequest(
		id, network.MainnetID, derivation.Account, derivation.TransactionSigning, space,
	)
}

// Instance returns the instance at offset for the request, with a public key
// unique to the slot.
func Instance(req derivation.Request, offset uint32) instance.FactorInstance {
	path := req.PathAt(offset)
	seed := uint64(path.Index.Raw())<<16 |
		uint64(req.FactorSourceID.Body[0])<<8 |
		uint64(req.FactorSourceID.Kind)<<4 |
		uint64(req.Network)
	return instance.FromPath(path, PublicKey(seed))
}

// Instances returns the instances at offsets [from, from+n).
func Instances(req derivation.Request, from uint32, n int) []instance.FactorInstance {
	out := make([]instance.FactorInstance, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Instance(req, from+uint32(i)))
	}
	return out
}
