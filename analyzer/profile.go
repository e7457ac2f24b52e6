package analyzer

import (
	"context"

	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/profile"
)

// Profile classifies instances against the accounts of a wallet profile. It
// reads a copy of the profile taken at construction.
type Profile struct {
	addresses map[address.AccountAddress]struct{}
	instances map[instance.FactorInstance]struct{}
	floors    map[derivation.Request]uint32
}

// NewProfile returns an analyzer over the accounts of p.
func NewProfile(p *profile.Profile) *Profile {
	a := &Profile{
		addresses: make(map[address.AccountAddress]struct{}),
		instances: make(map[instance.FactorInstance]struct{}),
		floors:    make(map[derivation.Request]uint32),
	}
	for _, acc := range p.Accounts() {
		a.addresses[acc.Address()] = struct{}{}
		for _, fi := range acc.FactorInstances() {
			a.instances[fi] = struct{}{}
			r := fi.Request()
			if next := fi.Path.Index.Offset() + 1; next > a.floors[r] {
				a.floors[r] = next
			}
		}
	}
	return a
}

// Taken returns the instances referenced by an account of the profile, or
// controlling the address of one.
func (a *Profile) Taken(
	_ context.Context,
	instances []instance.FactorInstance,
) ([]instance.FactorInstance, error) {
	var taken []instance.FactorInstance
	for _, fi := range instances {
		if _, ok := a.instances[fi]; ok {
			taken = append(taken, fi)
			continue
		}
		if fi.KeySpace() != derivation.Unsecurified {
			continue
		}
		if _, ok := a.addresses[instance.AddressOf(fi)]; ok {
			taken = append(taken, fi)
		}
	}
	return taken, nil
}

// Floor returns the offset following the greatest one the profile uses for
// r.
func (a *Profile) Floor(r derivation.Request) uint32 {
	return a.floors[r]
}
