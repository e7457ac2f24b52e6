package polyderive_test

import (
	"context"
	"sync"

	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/internal/testutil"
	"github.com/vulpemventures/go-polyderive/network"
)

// mockProvider derives deterministic instances unless deriveFn is set.
type mockProvider struct {
	mu        sync.Mutex
	deriveFn  func(context.Context, map[factorsource.ID][]derivation.Path) ([]instance.FactorInstance, error)
	callCount int
	requested []derivation.Path
}

func (m *mockProvider) Derive(
	ctx context.Context,
	paths map[factorsource.ID][]derivation.Path,
) ([]instance.FactorInstance, error) {
	m.mu.Lock()
	m.callCount++
	for _, list := range paths {
		m.requested = append(m.requested, list...)
	}
	m.mu.Unlock()

	if m.deriveFn != nil {
		return m.deriveFn(ctx, paths)
	}
	return deriveAll(paths), nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockProvider) paths() []derivation.Path {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]derivation.Path(nil), m.requested...)
}

func deriveAll(paths map[factorsource.ID][]derivation.Path) []instance.FactorInstance {
	var out []instance.FactorInstance
	for _, list := range paths {
		for _, p := range list {
			out = append(out, testutil.Instance(p.InKeySpace(), p.Index.Offset()))
		}
	}
	return out
}

// mockAnalyzer reports as taken the instances takenFn selects, or fails with
// err.
type mockAnalyzer struct {
	mu        sync.Mutex
	takenFn   func(instance.FactorInstance) bool
	err       error
	callCount int
}

func (m *mockAnalyzer) Taken(
	_ context.Context,
	items []instance.FactorInstance,
) ([]instance.FactorInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	var out []instance.FactorInstance
	for _, fi := range items {
		if m.takenFn != nil && m.takenFn(fi) {
			out = append(out, fi)
		}
	}
	return out, nil
}

// usedAt reports the unsecurified instances at the given offsets as taken.
func usedAt(offsets ...uint32) *mockAnalyzer {
	used := make(map[uint32]bool, len(offsets))
	for _, o := range offsets {
		used[o] = true
	}
	return &mockAnalyzer{
		takenFn: func(fi instance.FactorInstance) bool {
			return fi.KeySpace() == derivation.Unsecurified && used[fi.Path.Index.Offset()]
		},
	}
}

func allUsed() *mockAnalyzer {
	return &mockAnalyzer{
		takenFn: func(instance.FactorInstance) bool { return true },
	}
}

// staticGateway knows a single used address.
type staticGateway struct {
	used address.AccountAddress
}

func (g *staticGateway) UsedAddresses(
	_ context.Context,
	_ network.ID,
	addrs []address.AccountAddress,
) ([]address.AccountAddress, error) {
	for _, a := range addrs {
		if a == g.used {
			return []address.AccountAddress{a}, nil
		}
	}
	return nil, nil
}
