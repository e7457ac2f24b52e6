package polyderive

import (
	"context"
	"fmt"

	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
)

// KeyDerivationProvider derives the public keys of the requested paths. It
// may prompt a user or a hardware device and may fail.
type KeyDerivationProvider interface {
	Derive(
		ctx context.Context,
		paths map[factorsource.ID][]derivation.Path,
	) ([]instance.FactorInstance, error)
}

// checkDerived verifies that derived holds exactly one instance per
// requested path, each owned by the factor source the path was requested
// for.
func checkDerived(
	paths map[factorsource.ID][]derivation.Path,
	derived []instance.FactorInstance,
) error {
	pending := make(map[derivation.Path]factorsource.ID)
	for id, list := range paths {
		for _, p := range list {
			pending[p] = id
		}
	}
	for _, fi := range derived {
		id, ok := pending[fi.Path]
		if !ok {
			return fmt.Errorf("unexpected or duplicated path %s", fi.Path)
		}
		if fi.FactorSourceID != id || fi.Path.FactorSourceID != id {
			return fmt.Errorf("path %s answered by %s", fi.Path, fi.FactorSourceID)
		}
		delete(pending, fi.Path)
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d requested paths left unanswered", len(pending))
	}
	return nil
}
