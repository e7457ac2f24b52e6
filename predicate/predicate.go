// Package predicate provides the policies deciding when a derivation scan has
// accumulated enough instances.
package predicate

import (
	"context"
	"fmt"

	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
)

// Predicate decides whether the accumulated result of a scan is sufficient.
type Predicate interface {
	IsDone(ctx context.Context, derived *instance.Derived) (bool, error)
}

// Selector matches factor sources either by kind or by id.
type Selector struct {
	kind     factorsource.Kind
	id       factorsource.ID
	specific bool
}

// OfKind matches any factor source of kind.
func OfKind(kind factorsource.Kind) Selector {
	return Selector{kind: kind}
}

// Specific matches the factor source with id only.
func Specific(id factorsource.ID) Selector {
	return Selector{kind: id.Kind, id: id, specific: true}
}

// Matches reports whether id is selected.
func (s Selector) Matches(id factorsource.ID) bool {
	if s.specific {
		return id == s.id
	}
	return id.Kind == s.kind
}

func (s Selector) String() string {
	if s.specific {
		return s.id.String()
	}
	return "any:" + s.kind.String()
}

type alwaysDone struct{}

// AlwaysDone is satisfied by any result. Since the orchestrator always
// derives once before checking, it stops after a single round.
func AlwaysDone() Predicate {
	return alwaysDone{}
}

func (alwaysDone) IsDone(context.Context, *instance.Derived) (bool, error) {
	return true, nil
}

func (alwaysDone) String() string { return "always_done" }

type matchesSpecificRequest struct {
	target derivation.Request
}

// MatchesSpecificRequest is satisfied once the result holds an instance
// answering target that is not known to be taken.
func MatchesSpecificRequest(target derivation.Request) Predicate {
	return matchesSpecificRequest{target: target}
}

func (p matchesSpecificRequest) IsDone(_ context.Context, derived *instance.Derived) (bool, error) {
	for _, fi := range derived.All() {
		if fi.Request() == p.target && !derived.IsTaken(fi) {
			return true, nil
		}
	}
	return false, nil
}

func (p matchesSpecificRequest) String() string {
	return "matches:" + p.target.String()
}

type hasFreeSecurified []factorsource.ID

// HasFreeSecurified is satisfied once the result holds, for every id, a
// securified instance of that factor source not known to be taken.
func HasFreeSecurified(ids ...factorsource.ID) Predicate {
	return hasFreeSecurified(ids)
}

func (p hasFreeSecurified) IsDone(_ context.Context, derived *instance.Derived) (bool, error) {
	free := make(map[factorsource.ID]struct{}, len(p))
	for _, s := range derived.Securified() {
		if !derived.IsTaken(s.Instance()) {
			free[s.FactorSourceID()] = struct{}{}
		}
	}
	for _, id := range p {
		if _, ok := free[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (p hasFreeSecurified) String() string {
	return fmt.Sprintf("free_securified:%v", []factorsource.ID(p))
}

type hasCount struct {
	selector Selector
	expected int
}

// HasCountForFactorSource is satisfied once the result holds at least
// expected unsecurified instances derived by selected factor sources.
func HasCountForFactorSource(selector Selector, expected int) Predicate {
	return hasCount{selector: selector, expected: expected}
}

func (p hasCount) IsDone(_ context.Context, derived *instance.Derived) (bool, error) {
	count := 0
	for _, u := range derived.Unsecurified() {
		if p.selector.Matches(u.FactorSourceID()) {
			count++
		}
	}
	return count >= p.expected, nil
}

func (p hasCount) String() string {
	return fmt.Sprintf("count:%s>=%d", p.selector, p.expected)
}

type all []Predicate

// All is satisfied once every predicate is. It stops at the first
// unsatisfied one.
func All(predicates ...Predicate) Predicate {
	return all(predicates)
}

func (a all) IsDone(ctx context.Context, derived *instance.Derived) (bool, error) {
	for _, p := range a {
		done, err := p.IsDone(ctx, derived)
		if err != nil || !done {
			return false, err
		}
	}
	return true, nil
}
