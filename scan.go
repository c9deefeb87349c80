package meltsenv

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Scan decodes the merged table into the target struct or map using `env`
// struct tags. The target must be a non-nil pointer.
func (s *Settings) Scan(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("target of Scan must be a non-nil pointer, got %T", target)
	}

	s.mutex.RLock()
	doc := make(map[string]any, len(s.order))
	for _, key := range s.order {
		doc[key] = s.items[key].currentValue
	}
	s.mutex.RUnlock()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "env",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(doc); err != nil {
		return fmt.Errorf("failed to scan settings into %T: %w", target, err)
	}
	return nil
}

// Env is the typed view of the stock alphaMELTS environment settings.
// Scan fills it from the merged table.
type Env struct {
	Version            string  `env:"ALPHAMELTS_VERSION"`
	Mode               string  `env:"ALPHAMELTS_MODE"`
	DeltaP             float64 `env:"ALPHAMELTS_DELTAP"`
	DeltaT             float64 `env:"ALPHAMELTS_DELTAT"`
	MaxP               float64 `env:"ALPHAMELTS_MAXP"`
	MinP               float64 `env:"ALPHAMELTS_MINP"`
	MaxT               float64 `env:"ALPHAMELTS_MAXT"`
	MinT               float64 `env:"ALPHAMELTS_MINT"`
	MinF               float64 `env:"ALPHAMELTS_MINF"`
	MassIn             float64 `env:"ALPHAMELTS_MASSIN"`
	MgOTarget          float64 `env:"ALPHAMELTS_MGO_TARGET"`
	DryIterPatience    int64   `env:"ALPHAMELTS_DRY_ITER_PATIENCE"`
	FailedIterPatience int64   `env:"ALPHAMELTS_FAILED_ITER_PATIENCE"`
	HKPxGtTraceH2O     bool    `env:"ALPHAMELTS_HK_PXGT_TRACE_H2O"`
	CelsiusOutput      bool    `env:"ALPHAMELTS_CELSIUS_OUTPUT"`
}
