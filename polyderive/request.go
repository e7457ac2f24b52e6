package polyderive

import (
	"github.com/vulpemventures/go-polyderive/account"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/network"
)

// RequestKind is what a derivation is run for. The set of kinds is closed.
type RequestKind interface {
	Name() string
	isRequestKind()
}

// OARS is the onboarding account recovery scan. It runs on mainnet.
type OARS struct {
	FactorSources *factorsource.FactorSources
}

// MARS is the manual account recovery scan, done with a single factor
// source.
type MARS struct {
	FactorSource factorsource.FactorSource
	Network      network.ID
}

// NewVirtualUnsecurifiedAccount creates a new account controlled by a single
// factor source.
type NewVirtualUnsecurifiedAccount struct {
	Network      network.ID
	FactorSource factorsource.FactorSource
}

// SecurifyUnsecurifiedAccount moves an unsecurified account under the
// control of a matrix of factor sources.
type SecurifyUnsecurifiedAccount struct {
	Account account.UnsecurifiedAccount
	Matrix  account.MatrixOfFactorSources
}

// UpdateSecurifiedAccount replaces the matrix of a securified account.
type UpdateSecurifiedAccount struct {
	Account account.SecurifiedAccount
	Matrix  account.MatrixOfFactorSources
}

// PreDeriveInstancesForNewFactorSource fills the cache with instances of a
// newly added factor source.
type PreDeriveInstancesForNewFactorSource struct {
	FactorSource factorsource.FactorSource
	Network      network.ID
}

func (OARS) Name() string                                 { return "oars" }
func (MARS) Name() string                                 { return "mars" }
func (NewVirtualUnsecurifiedAccount) Name() string        { return "new_virtual_unsecurified_account" }
func (SecurifyUnsecurifiedAccount) Name() string          { return "securify_unsecurified_account" }
func (UpdateSecurifiedAccount) Name() string              { return "update_securified_account" }
func (PreDeriveInstancesForNewFactorSource) Name() string { return "pre_derive_instances_for_new_factor_source" }

func (OARS) isRequestKind()                                 {}
func (MARS) isRequestKind()                                 {}
func (NewVirtualUnsecurifiedAccount) isRequestKind()        {}
func (SecurifyUnsecurifiedAccount) isRequestKind()          {}
func (UpdateSecurifiedAccount) isRequestKind()              {}
func (PreDeriveInstancesForNewFactorSource) isRequestKind() {}
