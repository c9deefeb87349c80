package meltsenv

// Stock setting keys of the default alphaMELTS environment.
const (
	KeyVersion            = "ALPHAMELTS_VERSION"
	KeyMode               = "ALPHAMELTS_MODE"
	KeyDeltaP             = "ALPHAMELTS_DELTAP"
	KeyDeltaT             = "ALPHAMELTS_DELTAT"
	KeyMaxP               = "ALPHAMELTS_MAXP"
	KeyMinP               = "ALPHAMELTS_MINP"
	KeyMaxT               = "ALPHAMELTS_MAXT"
	KeyMinT               = "ALPHAMELTS_MINT"
	KeyMinF               = "ALPHAMELTS_MINF"
	KeyMassIn             = "ALPHAMELTS_MASSIN"
	KeyMgOTarget          = "ALPHAMELTS_MGO_TARGET"
	KeyDryIterPatience    = "ALPHAMELTS_DRY_ITER_PATIENCE"
	KeyFailedIterPatience = "ALPHAMELTS_FAILED_ITER_PATIENCE"
	KeyHKPxGtTraceH2O     = "ALPHAMELTS_HK_PXGT_TRACE_H2O"
	KeyCelsiusOutput      = "ALPHAMELTS_CELSIUS_OUTPUT"
)

// stockDefaults mirrors the default environment file shipped with the
// external tool: pMELTS in isobaric mode with a cooling P-T path.
var stockDefaults = []struct {
	key   string
	value any
}{
	{KeyVersion, "pMELTS"},
	{KeyMode, "isobaric"},
	{KeyDeltaP, 0.0},
	{KeyDeltaT, -5.0},
	{KeyMaxP, 30000.0},
	{KeyMinP, 1.0},
	{KeyMaxT, 2400.0},
	{KeyMinT, 600.0},
	{KeyMinF, 0.005},
	{KeyMassIn, 0.001},
	{KeyMgOTarget, 8.0},
	{KeyDryIterPatience, int64(100)},
	{KeyFailedIterPatience, int64(10)},
	{KeyHKPxGtTraceH2O, true},
	{KeyCelsiusOutput, false},
}

// Defaults returns a Settings table pre-registered with the stock alphaMELTS
// default environment, in canonical file order.
func Defaults() *Settings {
	s := New()
	s.RegisterStockDefaults()
	return s
}

// RegisterStockDefaults registers the stock defaults on an existing table.
func (s *Settings) RegisterStockDefaults() {
	for _, d := range stockDefaults {
		// Keys are compile-time constants, registration cannot fail.
		_ = s.Register(d.key, d.value)
	}
}
