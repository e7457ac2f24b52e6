package derivation

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/network"
)

// ErrInvalidPath is returned when a string is not a valid CAP26 path.
var ErrInvalidPath = errors.New("derivation: invalid path")

const cap26Depth = 6

// ParsePath parses a CAP26 path for the factor source id. Hardened
// components may be marked with ', h or H.
func ParsePath(id factorsource.ID, path string) (Path, error) {
	components := strings.Split(strings.TrimSpace(path), "/")
	if len(components) == 0 || components[0] != "m" {
		return Path{}, fmt.Errorf("%w: %s must start with m", ErrInvalidPath, path)
	}
	values, err := parseComponents(components[1:])
	if err != nil {
		return Path{}, fmt.Errorf("%w: %s", ErrInvalidPath, err)
	}
	if len(values) != cap26Depth {
		return Path{}, fmt.Errorf(
			"%w: expected %d components, got %d", ErrInvalidPath, cap26Depth, len(values),
		)
	}
	for i, v := range values {
		if v < HardenedOffset {
			return Path{}, fmt.Errorf("%w: component %d is not hardened", ErrInvalidPath, i)
		}
		if i < cap26Depth-1 {
			values[i] = v - HardenedOffset
		}
	}

	if values[0] != Purpose || values[1] != CoinType {
		return Path{}, fmt.Errorf("%w: not a CAP26 path", ErrInvalidPath)
	}
	net := network.ID(values[2])
	if values[2] > math.MaxUint8 {
		return Path{}, fmt.Errorf("%w: network %d", ErrInvalidPath, values[2])
	}
	if _, err := net.Params(); err != nil {
		return Path{}, fmt.Errorf("%w: %s", ErrInvalidPath, err)
	}
	entity := EntityKind(values[3])
	if entity != Account && entity != Identity {
		return Path{}, fmt.Errorf("%w: entity kind %d", ErrInvalidPath, values[3])
	}
	key := KeyKind(values[4])
	if key != TransactionSigning && key != AuthenticationSigning {
		return Path{}, fmt.Errorf("%w: key kind %d", ErrInvalidPath, values[4])
	}

	return NewPath(id, net, entity, key, Classify(values[5])), nil
}

func parseComponents(components []string) ([]uint32, error) {
	result := make([]uint32, 0, len(components))

	for _, component := range components {
		component = strings.TrimSpace(component)
		var value uint32

		for _, marker := range []string{"'", "h", "H"} {
			if strings.HasSuffix(component, marker) {
				value = HardenedOffset
				component = strings.TrimSpace(strings.TrimSuffix(component, marker))
				break
			}
		}
		bigval, ok := new(big.Int).SetString(component, 10)
		if !ok {
			return nil, fmt.Errorf("invalid component: %s", component)
		}
		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf("component %v out of allowed "+
					"range [0, %d]", bigval, max)
			}
			return nil, fmt.Errorf("component %v out of allowed "+
				"hardened range [0, %d]", bigval, max)
		}
		result = append(result, uint32(bigval.Uint64())+value)
	}

	return result, nil
}
