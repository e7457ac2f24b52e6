// Package analyzer classifies derived factor instances as already taken,
// either on ledger through a gateway or locally by the wallet profile.
package analyzer

import (
	"context"

	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/network"
)

// Analyzer reports which of the given instances are already in use.
type Analyzer interface {
	Taken(ctx context.Context, instances []instance.FactorInstance) ([]instance.FactorInstance, error)
}

// IndexFloor reports, per request, the first offset not yet used.
type IndexFloor interface {
	Floor(r derivation.Request) uint32
}

// ProfileAnalyzer is an Analyzer that also knows the indices already in use.
type ProfileAnalyzer interface {
	Analyzer
	IndexFloor
}

// Gateway is the network transport the on-chain analyzer queries.
type Gateway interface {
	// UsedAddresses returns the subset of addrs with ledger history.
	UsedAddresses(
		ctx context.Context,
		net network.ID,
		addrs []address.AccountAddress,
	) ([]address.AccountAddress, error)
}

type dummy struct{}

// Dummy returns an analyzer that reports nothing as taken and no index as
// used.
func Dummy() ProfileAnalyzer {
	return dummy{}
}

func (dummy) Taken(context.Context, []instance.FactorInstance) ([]instance.FactorInstance, error) {
	return nil, nil
}

func (dummy) Floor(derivation.Request) uint32 {
	return 0
}
