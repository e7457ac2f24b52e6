package instance

import (
	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/network"
)

// Derived accumulates the instances obtained during a derivation scan and
// which of them are known to be taken, either on ledger or by the profile.
type Derived struct {
	network      network.ID
	unsecurified *Set
	securified   *Set
	taken        map[FactorInstance]struct{}
}

// NewDerived returns an empty result for the network.
func NewDerived(net network.ID) *Derived {
	return &Derived{
		network:      net,
		unsecurified: NewSet(),
		securified:   NewSet(),
		taken:        make(map[FactorInstance]struct{}),
	}
}

// Network returns the network the scan runs on.
func (d *Derived) Network() network.ID {
	return d.network
}

// Merge adds the instances, split by keyspace, and returns the ones that were
// not already accumulated.
func (d *Derived) Merge(items ...FactorInstance) []FactorInstance {
	fresh := make([]FactorInstance, 0, len(items))
	for _, fi := range items {
		set := d.unsecurified
		if fi.KeySpace() == derivation.Securified {
			set = d.securified
		}
		if set.Add(fi) == 1 {
			fresh = append(fresh, fi)
		}
	}
	return fresh
}

// MarkTaken records that the instances are already in use.
func (d *Derived) MarkTaken(items ...FactorInstance) {
	for _, fi := range items {
		d.taken[fi] = struct{}{}
	}
}

// IsTaken reports whether fi is known to be in use.
func (d *Derived) IsTaken(fi FactorInstance) bool {
	_, ok := d.taken[fi]
	return ok
}

// Contains reports whether fi has been accumulated.
func (d *Derived) Contains(fi FactorInstance) bool {
	return d.unsecurified.Contains(fi) || d.securified.Contains(fi)
}

// Unsecurified returns the accumulated unsecurified instances in derivation
// order.
func (d *Derived) Unsecurified() []Unsecurified {
	all := d.unsecurified.All()
	out := make([]Unsecurified, 0, len(all))
	for _, fi := range all {
		out = append(out, MustUnsecurified(fi))
	}
	return out
}

// Securified returns the accumulated securified instances in derivation
// order.
func (d *Derived) Securified() []Securified {
	all := d.securified.All()
	out := make([]Securified, 0, len(all))
	for _, fi := range all {
		out = append(out, MustSecurified(fi))
	}
	return out
}

// All returns every accumulated instance, unsecurified first.
func (d *Derived) All() []FactorInstance {
	return append(d.unsecurified.All(), d.securified.All()...)
}

// Len returns the number of accumulated instances.
func (d *Derived) Len() int {
	return d.unsecurified.Len() + d.securified.Len()
}

// KnownTaken returns the accumulated instances known to be in use.
func (d *Derived) KnownTaken() []FactorInstance {
	out := make([]FactorInstance, 0, len(d.taken))
	for _, fi := range d.All() {
		if d.IsTaken(fi) {
			out = append(out, fi)
		}
	}
	return out
}

// ProbablyFree returns the accumulated instances not known to be in use.
func (d *Derived) ProbablyFree() []FactorInstance {
	out := make([]FactorInstance, 0, d.Len())
	for _, fi := range d.All() {
		if !d.IsTaken(fi) {
			out = append(out, fi)
		}
	}
	return out
}

// AddressOf returns the address controlled by the instance.
func AddressOf(fi FactorInstance) address.AccountAddress {
	return address.FromPublicKey(fi.Path.Network, fi.Path.EntityKind, fi.PublicKey.Bytes())
}
