package account

import (
	"errors"
	"fmt"

	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
)

var (
	// ErrThresholdTooHigh is returned when the threshold exceeds the number
	// of threshold factors.
	ErrThresholdTooHigh = errors.New("account: threshold exceeds threshold factors")
	// ErrThresholdZero is returned when threshold factors are given with a
	// zero threshold.
	ErrThresholdZero = errors.New("account: threshold must be positive")
	// ErrOverlappingFactors is returned when a factor source appears more
	// than once across threshold and override factors.
	ErrOverlappingFactors = errors.New("account: factor source used more than once")
	// ErrEmptyMatrix is returned when a matrix has no factors at all.
	ErrEmptyMatrix = errors.New("account: matrix has no factors")
	// ErrMissingInstance is returned when a factor source of a policy has no
	// securified instance to substitute it with.
	ErrMissingInstance = errors.New("account: missing securified instance for factor source")
)

// Factor is anything bound to a factor source.
type Factor interface {
	FactorSourceID() factorsource.ID
}

// Matrix is a security structure: any Threshold of the threshold factors, or
// any single override factor, can sign.
type Matrix[T Factor] struct {
	ThresholdFactors []T
	Threshold        uint8
	OverrideFactors  []T
}

// MatrixOfFactorSources is a security policy over factor sources.
type MatrixOfFactorSources = Matrix[factorsource.FactorSource]

// MatrixOfFactorInstances is a realized, signable security structure.
type MatrixOfFactorInstances = Matrix[instance.Securified]

// NewMatrix validates and returns a matrix.
func NewMatrix[T Factor](thresholdFactors []T, threshold uint8, overrideFactors []T) (Matrix[T], error) {
	m := Matrix[T]{
		ThresholdFactors: append([]T(nil), thresholdFactors...),
		Threshold:        threshold,
		OverrideFactors:  append([]T(nil), overrideFactors...),
	}
	if err := m.Validate(); err != nil {
		return Matrix[T]{}, err
	}
	return m, nil
}

// Validate checks the matrix invariants.
func (m Matrix[T]) Validate() error {
	if len(m.ThresholdFactors) == 0 && len(m.OverrideFactors) == 0 {
		return ErrEmptyMatrix
	}
	if int(m.Threshold) > len(m.ThresholdFactors) {
		return fmt.Errorf(
			"%w: %d > %d", ErrThresholdTooHigh, m.Threshold, len(m.ThresholdFactors),
		)
	}
	if len(m.ThresholdFactors) > 0 && m.Threshold == 0 {
		return ErrThresholdZero
	}
	seen := make(map[factorsource.ID]struct{})
	for _, f := range m.AllFactors() {
		id := f.FactorSourceID()
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrOverlappingFactors, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// AllFactors returns threshold factors followed by override factors.
func (m Matrix[T]) AllFactors() []T {
	out := make([]T, 0, len(m.ThresholdFactors)+len(m.OverrideFactors))
	out = append(out, m.ThresholdFactors...)
	return append(out, m.OverrideFactors...)
}

// AllFactorSourceIDs returns the factor source ids of AllFactors.
func (m Matrix[T]) AllFactorSourceIDs() []factorsource.ID {
	all := m.AllFactors()
	out := make([]factorsource.ID, 0, len(all))
	for _, f := range all {
		out = append(out, f.FactorSourceID())
	}
	return out
}

// BuildMatrixOfFactorInstances substitutes every factor source of policy with
// its securified instance.
func BuildMatrixOfFactorInstances(
	policy MatrixOfFactorSources,
	instances []instance.Securified,
) (MatrixOfFactorInstances, error) {
	if err := policy.Validate(); err != nil {
		return MatrixOfFactorInstances{}, err
	}
	byID := make(map[factorsource.ID]instance.Securified, len(instances))
	for _, si := range instances {
		if _, ok := byID[si.FactorSourceID()]; !ok {
			byID[si.FactorSourceID()] = si
		}
	}

	substitute := func(sources []factorsource.FactorSource) ([]instance.Securified, error) {
		out := make([]instance.Securified, 0, len(sources))
		for _, fs := range sources {
			si, ok := byID[fs.ID]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingInstance, fs.ID)
			}
			out = append(out, si)
		}
		return out, nil
	}

	threshold, err := substitute(policy.ThresholdFactors)
	if err != nil {
		return MatrixOfFactorInstances{}, err
	}
	override, err := substitute(policy.OverrideFactors)
	if err != nil {
		return MatrixOfFactorInstances{}, err
	}
	return NewMatrix(threshold, policy.Threshold, override)
}
