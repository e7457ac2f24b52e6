/*
Package polyderive derives the factor instances the account flows of a wallet
need: recovery scans, new accounts, securification and pre derivation for new
factor sources.

An Orchestrator runs a single request. It takes instances from a shared cache,
derives the missing ones through a KeyDerivationProvider, has the analyzers
classify them and loops until the completion predicate of the request is
satisfied or its round bound is hit.

This is how a wallet recovers the accounts of a mnemonic during onboarding.

First, we need a key derivation provider. The hdsigner package derives public
keys out of a BIP39 mnemonic and acts as a device factor source.
	signer, err := hdsigner.NewSigner(mnemonic, "", factorsource.Device, "phone")
	if err != nil {
		return err
	}
	provider := hdsigner.NewProvider(logger, signer)

Secondly, the scan needs to know which addresses were already used on ledger.
An OnChain analyzer queries a Gateway, here a block explorer, and memoises the
answers.
	gw := explorer.New(explorer.WithNetwork(network.MainnetID, explorerURL))
	onChain, err := analyzer.NewOnChain(gw, analyzer.WithRetries(3, time.Second))
	if err != nil {
		return err
	}
	defer onChain.Close()

The instance cache is persisted between sessions, so that keys derived but not
used yet are never derived again.
	store, err := cachestore.Open(cachestore.Options{Dir: cacheDir})
	if err != nil {
		return err
	}
	defer store.Close()
	c, err := store.Load()
	if err != nil {
		return err
	}

Now the recovery scan can run. It derives a batch of account keys for every
factor source, creates an account for each key whose address is in use and
keeps the others in the cache.
	p, c, err := polyderive.RecoverOnboarding(
		ctx, provider.FactorSources(), provider, onChain,
		polyderive.WithCache(c),
		polyderive.WithLogger(logger),
	)
	if err != nil {
		return err
	}

Finally, the refreshed cache is saved for the next session.
	if err := store.Save(c); err != nil {
		return err
	}

Later flows reuse the profile and the cache. CreateAccount hands out the next
unused key, SecurifyAccount moves an account under a matrix of factor sources
and AddFactorSource pre derives the keys of a new factor source.
	acc, err := polyderive.CreateAccount(ctx, p, c, signer.FactorSource(), provider)

Every failure is an *Error carrying an ErrorCode, so callers can match them
with errors.Is.
	if errors.Is(err, polyderive.ErrRoundTimeout) {
		// retry later
	}
*/
package polyderive
