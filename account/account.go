// Package account builds unsecurified and securified accounts out of derived
// factor instances.
package account

import (
	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/instance"
)

// UnsecurifiedAccount is controlled by the single instance that created it.
type UnsecurifiedAccount struct {
	Address address.AccountAddress
	Veci    instance.Unsecurified
}

// NewUnsecurifiedAccount returns the account created by veci.
func NewUnsecurifiedAccount(veci instance.Unsecurified) UnsecurifiedAccount {
	return UnsecurifiedAccount{
		Address: instance.AddressOf(veci.Instance()),
		Veci:    veci,
	}
}

// Account returns u as an Account.
func (u UnsecurifiedAccount) Account() Account {
	return Account{unsecurified: &u}
}

// SecurifiedAccount is controlled by a matrix of securified instances. It
// keeps the address, and optionally the instance, it was created with.
type SecurifiedAccount struct {
	Address address.AccountAddress
	Veci    *instance.Unsecurified
	Matrix  MatrixOfFactorInstances
}

// NewSecurifiedAccount returns a securified account at addr.
func NewSecurifiedAccount(
	addr address.AccountAddress,
	veci *instance.Unsecurified,
	matrix MatrixOfFactorInstances,
) SecurifiedAccount {
	return SecurifiedAccount{Address: addr, Veci: veci, Matrix: matrix}
}

// Securify moves u under the control of matrix.
func Securify(u UnsecurifiedAccount, matrix MatrixOfFactorInstances) SecurifiedAccount {
	veci := u.Veci
	return NewSecurifiedAccount(u.Address, &veci, matrix)
}

// WithMatrix returns s controlled by matrix instead.
func (s SecurifiedAccount) WithMatrix(matrix MatrixOfFactorInstances) SecurifiedAccount {
	s.Matrix = matrix
	return s
}

// Account returns s as an Account.
func (s SecurifiedAccount) Account() Account {
	return Account{securified: &s}
}

// Account is either unsecurified or securified.
type Account struct {
	unsecurified *UnsecurifiedAccount
	securified   *SecurifiedAccount
}

// Address returns the address of the account.
func (a Account) Address() address.AccountAddress {
	if a.securified != nil {
		return a.securified.Address
	}
	if a.unsecurified != nil {
		return a.unsecurified.Address
	}
	return address.AccountAddress{}
}

// AsUnsecurified returns the unsecurified variant, if a is one.
func (a Account) AsUnsecurified() (UnsecurifiedAccount, bool) {
	if a.unsecurified == nil {
		return UnsecurifiedAccount{}, false
	}
	return *a.unsecurified, true
}

// AsSecurified returns the securified variant, if a is one.
func (a Account) AsSecurified() (SecurifiedAccount, bool) {
	if a.securified == nil {
		return SecurifiedAccount{}, false
	}
	return *a.securified, true
}

// IsSecurified reports whether a is controlled by a matrix.
func (a Account) IsSecurified() bool {
	return a.securified != nil
}

// FactorInstances returns every instance referenced by the account.
func (a Account) FactorInstances() []instance.FactorInstance {
	if u, ok := a.AsUnsecurified(); ok {
		return []instance.FactorInstance{u.Veci.Instance()}
	}
	s, ok := a.AsSecurified()
	if !ok {
		return nil
	}
	out := make([]instance.FactorInstance, 0, len(s.Matrix.ThresholdFactors)+len(s.Matrix.OverrideFactors)+1)
	if s.Veci != nil {
		out = append(out, s.Veci.Instance())
	}
	for _, si := range s.Matrix.AllFactors() {
		out = append(out, si.Instance())
	}
	return out
}
