// Package profile holds the wallet state the derivation flows append to: the
// factor sources of the wallet and its accounts.
package profile

import (
	"errors"
	"fmt"

	"github.com/vulpemventures/go-polyderive/account"
	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/network"
)

var (
	// ErrDuplicateFactorSource is returned when inserting a factor source
	// already in the profile.
	ErrDuplicateFactorSource = errors.New("profile: duplicate factor source")
	// ErrDuplicateAccount is returned when inserting an account whose
	// address is already in the profile.
	ErrDuplicateAccount = errors.New("profile: duplicate account")
	// ErrAccountNotFound is returned when no account has the given address.
	ErrAccountNotFound = errors.New("profile: account not found")
)

// Profile is the set of factor sources, insertion ordered and unique, and of
// accounts, unique by address, of a wallet on its current network.
type Profile struct {
	network       network.ID
	factorSources *factorsource.FactorSources
	accounts      []account.Account
	byAddress     map[address.AccountAddress]int
}

// New returns a profile on net holding sources and accounts.
func New(
	net network.ID,
	sources *factorsource.FactorSources,
	accounts ...account.Account,
) (*Profile, error) {
	p := &Profile{
		network:       net,
		factorSources: factorsource.NewFactorSources(),
		byAddress:     make(map[address.AccountAddress]int),
	}
	if sources != nil {
		p.factorSources = sources.Clone()
	}
	if err := p.InsertAccounts(accounts...); err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentNetwork returns the network the profile operates on.
func (p *Profile) CurrentNetwork() network.ID {
	return p.network
}

// FactorSources returns the factor sources in insertion order.
func (p *Profile) FactorSources() []factorsource.FactorSource {
	return p.factorSources.All()
}

// FactorSource returns the factor source with id.
func (p *Profile) FactorSource(id factorsource.ID) (factorsource.FactorSource, bool) {
	return p.factorSources.Get(id)
}

// InsertFactorSource adds fs to the profile.
func (p *Profile) InsertFactorSource(fs factorsource.FactorSource) error {
	if !p.factorSources.Insert(fs) {
		return fmt.Errorf("%w: %s", ErrDuplicateFactorSource, fs.ID)
	}
	return nil
}

// Accounts returns the accounts in insertion order.
func (p *Profile) Accounts() []account.Account {
	out := make([]account.Account, len(p.accounts))
	copy(out, p.accounts)
	return out
}

// Account returns the account at addr.
func (p *Profile) Account(addr address.AccountAddress) (account.Account, error) {
	i, ok := p.byAddress[addr]
	if !ok {
		return account.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return p.accounts[i], nil
}

// HasAddress reports whether an account at addr exists.
func (p *Profile) HasAddress(addr address.AccountAddress) bool {
	_, ok := p.byAddress[addr]
	return ok
}

// InsertAccounts adds accounts to the profile. Either all of them are added
// or, if any address is already used, none is.
func (p *Profile) InsertAccounts(accounts ...account.Account) error {
	pending := make(map[address.AccountAddress]struct{}, len(accounts))
	for _, a := range accounts {
		addr := a.Address()
		if _, ok := p.byAddress[addr]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, addr)
		}
		if _, ok := pending[addr]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, addr)
		}
		pending[addr] = struct{}{}
	}
	for _, a := range accounts {
		p.byAddress[a.Address()] = len(p.accounts)
		p.accounts = append(p.accounts, a)
	}
	return nil
}

// UpdateAccount replaces the account with the same address as a.
func (p *Profile) UpdateAccount(a account.Account) error {
	i, ok := p.byAddress[a.Address()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, a.Address())
	}
	p.accounts[i] = a
	return nil
}

// Clone returns an independent copy of the profile.
func (p *Profile) Clone() *Profile {
	clone := &Profile{
		network:       p.network,
		factorSources: p.factorSources.Clone(),
		accounts:      make([]account.Account, len(p.accounts)),
		byAddress:     make(map[address.AccountAddress]int, len(p.byAddress)),
	}
	copy(clone.accounts, p.accounts)
	for k, v := range p.byAddress {
		clone.byAddress[k] = v
	}
	return clone
}
