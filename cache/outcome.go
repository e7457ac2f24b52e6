package cache

import (
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/instance"
)

// LoadOutcome reports what a load found for each of its requests.
type LoadOutcome struct {
	requests []derivation.Request
	wanted   map[derivation.Request]int
	found    map[derivation.Request][]instance.FactorInstance
}

// Requests returns the requests of the load.
func (o *LoadOutcome) Requests() []derivation.Request {
	return append([]derivation.Request(nil), o.requests...)
}

// Found returns the instances consumed for r.
func (o *LoadOutcome) Found(r derivation.Request) []instance.FactorInstance {
	return o.found[r]
}

// Instances returns every consumed instance, in request order.
func (o *LoadOutcome) Instances() []instance.FactorInstance {
	var out []instance.FactorInstance
	for _, r := range o.requests {
		out = append(out, o.found[r]...)
	}
	return out
}

// Missing returns how many instances r still lacks.
func (o *LoadOutcome) Missing(r derivation.Request) int {
	want := o.wanted[r]
	if want < 1 {
		want = 1
	}
	if got := len(o.found[r]); got < want {
		return want - got
	}
	return 0
}

// Misses returns the requests that were not satisfied.
func (o *LoadOutcome) Misses() []derivation.Request {
	var out []derivation.Request
	for _, r := range o.requests {
		if o.Missing(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// IsSatisfyingAllRequests reports whether every request was satisfied.
func (o *LoadOutcome) IsSatisfyingAllRequests() bool {
	return len(o.Misses()) == 0
}

// ShouldDeriveMore reports whether any request missed.
func (o *LoadOutcome) ShouldDeriveMore() bool {
	return !o.IsSatisfyingAllRequests()
}
