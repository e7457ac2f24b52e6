package polyderive

import (
	"context"
	"errors"

	"github.com/vulpemventures/go-polyderive/account"
	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/analyzer"
	"github.com/vulpemventures/go-polyderive/cache"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/network"
	"github.com/vulpemventures/go-polyderive/profile"
)

// RecoverOnboarding runs the onboarding account recovery scan over sources
// and returns a new mainnet profile holding them and the recovered accounts,
// along with the refreshed cache.
func RecoverOnboarding(
	ctx context.Context,
	sources *factorsource.FactorSources,
	provider KeyDerivationProvider,
	onChain analyzer.Analyzer,
	opts ...Option,
) (*profile.Profile, *cache.Cache, error) {
	opts = append([]Option{WithOnChainAnalyzer(onChain)}, opts...)
	res, err := run(ctx, OARS{FactorSources: sources}, provider, opts...)
	if err != nil {
		return nil, nil, err
	}

	p, err := profile.New(network.MainnetID, sources.Clone(), res.Accounts...)
	if err != nil {
		return nil, nil, WrapError(ErrInvalidRequest, "build profile", err)
	}
	return p, res.Cache, nil
}

// RecoverManually runs the manual account recovery scan of fs on the network
// of p and adds the accounts found, unknown to p, to it.
func RecoverManually(
	ctx context.Context,
	p *profile.Profile,
	c *cache.Cache,
	fs factorsource.FactorSource,
	provider KeyDerivationProvider,
	onChain analyzer.Analyzer,
	opts ...Option,
) ([]account.Account, error) {
	opts = append([]Option{
		WithProfile(p), WithCache(c), WithOnChainAnalyzer(onChain),
	}, opts...)
	res, err := run(ctx, MARS{FactorSource: fs, Network: p.CurrentNetwork()}, provider, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.InsertAccounts(res.Accounts...); err != nil {
		return nil, WrapError(ErrInvalidRequest, "insert recovered accounts", err)
	}
	return res.Accounts, nil
}

// CreateAccount creates a new unsecurified account controlled by fs on the
// network of p and adds it to p.
func CreateAccount(
	ctx context.Context,
	p *profile.Profile,
	c *cache.Cache,
	fs factorsource.FactorSource,
	provider KeyDerivationProvider,
	opts ...Option,
) (account.Account, error) {
	if _, ok := p.FactorSource(fs.ID); !ok {
		return account.Account{}, NewError(ErrInvalidRequest, "factor source not in profile").
			WithContext("factor_source", fs.ID.String())
	}

	opts = append([]Option{WithProfile(p), WithCache(c)}, opts...)
	kind := NewVirtualUnsecurifiedAccount{Network: p.CurrentNetwork(), FactorSource: fs}
	res, err := run(ctx, kind, provider, opts...)
	if err != nil {
		return account.Account{}, err
	}

	acc := res.Accounts[0]
	if err := p.InsertAccounts(acc); err != nil {
		res.Cache.Insert(acc.FactorInstances()...)
		return account.Account{}, WrapError(ErrInvalidRequest, "insert account", err)
	}
	return acc, nil
}

// SecurifyAccount moves the unsecurified account of p at addr under the
// control of matrix.
func SecurifyAccount(
	ctx context.Context,
	p *profile.Profile,
	c *cache.Cache,
	addr address.AccountAddress,
	matrix account.MatrixOfFactorSources,
	provider KeyDerivationProvider,
	opts ...Option,
) (account.Account, error) {
	current, err := lookupAccount(p, addr)
	if err != nil {
		return account.Account{}, err
	}
	unsecurified, ok := current.AsUnsecurified()
	if !ok {
		return account.Account{}, NewError(ErrInvalidRequest, "account already securified").
			WithContext("address", addr.String())
	}

	opts = append([]Option{WithProfile(p), WithCache(c)}, opts...)
	kind := SecurifyUnsecurifiedAccount{Account: unsecurified, Matrix: matrix}
	return applyUpdate(ctx, p, kind, provider, opts...)
}

// UpdateAccountSecurity replaces the matrix of the securified account of p at
// addr.
func UpdateAccountSecurity(
	ctx context.Context,
	p *profile.Profile,
	c *cache.Cache,
	addr address.AccountAddress,
	matrix account.MatrixOfFactorSources,
	provider KeyDerivationProvider,
	opts ...Option,
) (account.Account, error) {
	current, err := lookupAccount(p, addr)
	if err != nil {
		return account.Account{}, err
	}
	securified, ok := current.AsSecurified()
	if !ok {
		return account.Account{}, NewError(ErrInvalidRequest, "account not securified").
			WithContext("address", addr.String())
	}

	opts = append([]Option{WithProfile(p), WithCache(c)}, opts...)
	kind := UpdateSecurifiedAccount{Account: securified, Matrix: matrix}
	return applyUpdate(ctx, p, kind, provider, opts...)
}

// AddFactorSource pre derives a batch of instances of fs into c and adds fs
// to p.
func AddFactorSource(
	ctx context.Context,
	p *profile.Profile,
	c *cache.Cache,
	fs factorsource.FactorSource,
	provider KeyDerivationProvider,
	opts ...Option,
) error {
	if _, ok := p.FactorSource(fs.ID); ok {
		return NewError(ErrDuplicateFactorSource, "factor source already in profile").
			WithContext("factor_source", fs.ID.String())
	}

	opts = append([]Option{WithProfile(p), WithCache(c)}, opts...)
	kind := PreDeriveInstancesForNewFactorSource{FactorSource: fs, Network: p.CurrentNetwork()}
	if _, err := run(ctx, kind, provider, opts...); err != nil {
		return err
	}
	if err := p.InsertFactorSource(fs); err != nil {
		return WrapError(ErrDuplicateFactorSource, "insert factor source", err)
	}
	return nil
}

func run(ctx context.Context, kind RequestKind, provider KeyDerivationProvider, opts ...Option) (*Result, error) {
	o, err := New(kind, provider, opts...)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}

func lookupAccount(p *profile.Profile, addr address.AccountAddress) (account.Account, error) {
	acc, err := p.Account(addr)
	if errors.Is(err, profile.ErrAccountNotFound) {
		return account.Account{}, WrapError(ErrAccountNotFound, "lookup account", err).
			WithContext("address", addr.String())
	}
	return acc, err
}

func applyUpdate(
	ctx context.Context,
	p *profile.Profile,
	kind RequestKind,
	provider KeyDerivationProvider,
	opts ...Option,
) (account.Account, error) {
	res, err := run(ctx, kind, provider, opts...)
	if err != nil {
		return account.Account{}, err
	}
	acc := res.Accounts[0]
	if err := p.UpdateAccount(acc); err != nil {
		s, _ := acc.AsSecurified()
		for _, si := range s.Matrix.AllFactors() {
			res.Cache.Insert(si.Instance())
		}
		return account.Account{}, WrapError(ErrAccountNotFound, "update account", err)
	}
	return acc, nil
}
