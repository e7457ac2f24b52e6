package profile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/account"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/internal/testutil"
	"github.com/vulpemventures/go-polyderive/network"
	"github.com/vulpemventures/go-polyderive/profile"
)

var fs = testutil.FactorSource(factorsource.Device, 1)

func newAccount(offset uint32) account.Account {
	fi := testutil.Instance(testutil.Request(fs.ID, derivation.Unsecurified), offset)
	return account.NewUnsecurifiedAccount(instance.MustUnsecurified(fi)).Account()
}

func TestInsertFactorSource(t *testing.T) {
	p, err := profile.New(network.MainnetID, nil)
	require.NoError(t, err)

	require.NoError(t, p.InsertFactorSource(fs))
	err = p.InsertFactorSource(fs)
	assert.ErrorIs(t, err, profile.ErrDuplicateFactorSource)
	assert.Equal(t, []factorsource.FactorSource{fs}, p.FactorSources())

	got, ok := p.FactorSource(fs.ID)
	assert.True(t, ok)
	assert.Equal(t, fs, got)
}

func TestInsertAccountsAllOrNothing(t *testing.T) {
	a0, a1, a2 := newAccount(0), newAccount(1), newAccount(2)
	p, err := profile.New(network.MainnetID, factorsource.NewFactorSources(fs), a0)
	require.NoError(t, err)

	err = p.InsertAccounts(a1, a0)
	assert.ErrorIs(t, err, profile.ErrDuplicateAccount)
	assert.Len(t, p.Accounts(), 1)

	err = p.InsertAccounts(a1, a1)
	assert.ErrorIs(t, err, profile.ErrDuplicateAccount)
	assert.Len(t, p.Accounts(), 1)

	require.NoError(t, p.InsertAccounts(a1, a2))
	assert.Equal(t, []account.Account{a0, a1, a2}, p.Accounts())
	assert.True(t, p.HasAddress(a2.Address()))

	_, err = profile.New(network.MainnetID, nil, a0, a0)
	assert.ErrorIs(t, err, profile.ErrDuplicateAccount)
}

func TestUpdateAccount(t *testing.T) {
	a0 := newAccount(0)
	p, err := profile.New(network.MainnetID, nil, a0)
	require.NoError(t, err)

	u, _ := a0.AsUnsecurified()
	sec := instance.MustSecurified(testutil.Instance(testutil.Request(fs.ID, derivation.Securified), 0))
	matrix, err := account.NewMatrix([]instance.Securified{sec}, 1, nil)
	require.NoError(t, err)
	securified := account.Securify(u, matrix).Account()

	require.NoError(t, p.UpdateAccount(securified))
	got, err := p.Account(a0.Address())
	require.NoError(t, err)
	assert.True(t, got.IsSecurified())

	err = p.UpdateAccount(newAccount(9))
	assert.ErrorIs(t, err, profile.ErrAccountNotFound)
	_, err = p.Account(newAccount(9).Address())
	assert.ErrorIs(t, err, profile.ErrAccountNotFound)
}

func TestClone(t *testing.T) {
	p, err := profile.New(network.StokenetID, factorsource.NewFactorSources(fs), newAccount(0))
	require.NoError(t, err)

	clone := p.Clone()
	require.NoError(t, clone.InsertAccounts(newAccount(1)))
	require.NoError(t, clone.InsertFactorSource(testutil.FactorSource(factorsource.Ledger, 2)))

	assert.Len(t, p.Accounts(), 1)
	assert.Len(t, p.FactorSources(), 1)
	assert.Len(t, clone.Accounts(), 2)
	assert.Equal(t, network.StokenetID, clone.CurrentNetwork())
}
