package meltsenv

import (
	"fmt"
	"strings"
)

// ValidatorFunc validates a fully loaded Settings instance.
type ValidatorFunc func(s *Settings) error

// knownModes are the calculation modes the external tool accepts.
var knownModes = []string{
	"isobaric",
	"isothermal",
	"isentropic",
	"isochoric",
	"ptpath",
	"ptgrid",
	"tpgrid",
}

// ValidateMode checks that ALPHAMELTS_MODE, when present, names a known
// calculation mode.
func ValidateMode(s *Settings) error {
	if !s.Has(KeyMode) {
		return nil
	}
	mode, err := s.String(KeyMode)
	if err != nil {
		return err
	}
	for _, known := range knownModes {
		if strings.EqualFold(mode, known) {
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q (expected one of %s)", mode, strings.Join(knownModes, ", "))
}

// ValidateBounds checks that pressure and temperature path bounds are ordered.
func ValidateBounds(s *Settings) error {
	if err := checkOrdered(s, KeyMinP, KeyMaxP); err != nil {
		return err
	}
	return checkOrdered(s, KeyMinT, KeyMaxT)
}

// ValidatePatience checks that iteration patience counters are non-negative.
func ValidatePatience(s *Settings) error {
	for _, key := range []string{KeyDryIterPatience, KeyFailedIterPatience} {
		if !s.Has(key) {
			continue
		}
		n, err := s.Int64(key)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", key, n)
		}
	}
	return nil
}

// StockValidators returns the validators matching the external tool's own
// startup checks. They are opt-in; the core load contract stops at type
// coercion.
func StockValidators() []ValidatorFunc {
	return []ValidatorFunc{ValidateMode, ValidateBounds, ValidatePatience}
}

func checkOrdered(s *Settings, minKey, maxKey string) error {
	if !s.Has(minKey) || !s.Has(maxKey) {
		return nil
	}
	minVal, err := s.Float64(minKey)
	if err != nil {
		return err
	}
	maxVal, err := s.Float64(maxKey)
	if err != nil {
		return err
	}
	if minVal > maxVal {
		return fmt.Errorf("%s (%g) exceeds %s (%g)", minKey, minVal, maxKey, maxVal)
	}
	return nil
}
