package meltsenv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEnvFile = `! Default values of environment variables
! Variables preceded by '!' are 'unset'

ALPHAMELTS_VERSION         pMELTS
ALPHAMELTS_MODE            isobaric
!ALPHAMELTS_PTPATH_FILE    ptpath.in
ALPHAMELTS_DELTAP          0.0
ALPHAMELTS_DELTAT          -5.0
ALPHAMELTS_MAXP            30000.0
ALPHAMELTS_MINP            1.0
ALPHAMELTS_DRY_ITER_PATIENCE    100
ALPHAMELTS_HK_PXGT_TRACE_H2O    True
`

// TestEnvFileLoading tests the line-oriented environment format
func TestEnvFileLoading(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("ValidEnvFile", func(t *testing.T) {
		envFile := filepath.Join(tmpDir, "environment.txt")
		os.WriteFile(envFile, []byte(sampleEnvFile), 0644)

		s := New()
		err := s.LoadFile(envFile)
		require.NoError(t, err)

		version, _ := s.Get("ALPHAMELTS_VERSION")
		assert.Equal(t, "pMELTS", version)

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isobaric", mode)

		deltaT, _ := s.Get("ALPHAMELTS_DELTAT")
		assert.Equal(t, -5.0, deltaT)

		patience, _ := s.Get("ALPHAMELTS_DRY_ITER_PATIENCE")
		assert.Equal(t, int64(100), patience)

		traceH2O, _ := s.Get("ALPHAMELTS_HK_PXGT_TRACE_H2O")
		assert.Equal(t, true, traceH2O)
	})

	t.Run("CommentLinesNeverProduceEntries", func(t *testing.T) {
		s := New()
		err := s.LoadReader(strings.NewReader(sampleEnvFile))
		require.NoError(t, err)

		assert.False(t, s.Has("ALPHAMELTS_PTPATH_FILE"))
		for _, key := range s.Keys() {
			assert.False(t, strings.HasPrefix(key, "!"))
		}
	})

	t.Run("FileOrderPreserved", func(t *testing.T) {
		s := New()
		err := s.LoadReader(strings.NewReader(sampleEnvFile))
		require.NoError(t, err)

		assert.Equal(t, []string{
			"ALPHAMELTS_VERSION",
			"ALPHAMELTS_MODE",
			"ALPHAMELTS_DELTAP",
			"ALPHAMELTS_DELTAT",
			"ALPHAMELTS_MAXP",
			"ALPHAMELTS_MINP",
			"ALPHAMELTS_DRY_ITER_PATIENCE",
			"ALPHAMELTS_HK_PXGT_TRACE_H2O",
		}, s.Keys())
	})

	t.Run("DuplicateKeyLastWinsFirstPosition", func(t *testing.T) {
		content := "ALPHAMELTS_MODE isobaric\nALPHAMELTS_MINP 1.0\nALPHAMELTS_MODE isothermal\n"

		s := New()
		err := s.LoadReader(strings.NewReader(content))
		require.NoError(t, err)

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isothermal", mode)
		assert.Equal(t, []string{"ALPHAMELTS_MODE", "ALPHAMELTS_MINP"}, s.Keys())
	})

	t.Run("NonExistentFile", func(t *testing.T) {
		s := New()
		err := s.LoadFile(filepath.Join(tmpDir, "missing.txt"))
		assert.ErrorIs(t, err, ErrEnvNotFound)
	})

	t.Run("MalformedLineReportsLineNumber", func(t *testing.T) {
		content := "ALPHAMELTS_MODE isobaric\n\nALPHAMELTS_MINP   \n"

		s := New()
		err := s.LoadReader(strings.NewReader(content))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedLine)

		var malformed *MalformedLineError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, 3, malformed.Line)
		assert.Equal(t, "ALPHAMELTS_MINP", malformed.Text)
	})

	t.Run("NoPartialTableOnError", func(t *testing.T) {
		content := "ALPHAMELTS_MODE isobaric\nALPHAMELTS_MINP\n"

		s := New()
		err := s.LoadReader(strings.NewReader(content))
		require.Error(t, err)
		assert.False(t, s.Has("ALPHAMELTS_MODE"))
		assert.Equal(t, 0, s.Len())
	})

	t.Run("BooleanLiteralsCaseInsensitive", func(t *testing.T) {
		content := "A_FLAG TRUE\nB_FLAG false\nC_FLAG FaLsE\n"

		s := New()
		require.NoError(t, s.LoadReader(strings.NewReader(content)))

		a, _ := s.Get("A_FLAG")
		b, _ := s.Get("B_FLAG")
		c, _ := s.Get("C_FLAG")
		assert.Equal(t, true, a)
		assert.Equal(t, false, b)
		assert.Equal(t, false, c)
	})

	t.Run("MostSpecificTypeWins", func(t *testing.T) {
		content := "AN_INT 42\nA_FLOAT 42.0\nA_NEGATIVE -17\nA_STRING 1.2.3\nSCI_FLOAT 1e-3\n"

		s := New()
		require.NoError(t, s.LoadReader(strings.NewReader(content)))

		i, _ := s.Get("AN_INT")
		f, _ := s.Get("A_FLOAT")
		n, _ := s.Get("A_NEGATIVE")
		str, _ := s.Get("A_STRING")
		sci, _ := s.Get("SCI_FLOAT")
		assert.Equal(t, int64(42), i)
		assert.Equal(t, 42.0, f)
		assert.Equal(t, int64(-17), n)
		assert.Equal(t, "1.2.3", str)
		assert.Equal(t, 0.001, sci)
	})

	t.Run("ReloadDropsStaleFileValues", func(t *testing.T) {
		envFile := filepath.Join(tmpDir, "reload.txt")
		os.WriteFile(envFile, []byte("ALPHAMELTS_MODE isothermal\n"), 0644)

		s := New()
		s.Register("ALPHAMELTS_MODE", "isobaric")
		require.NoError(t, s.LoadFile(envFile))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isothermal", mode)

		os.WriteFile(envFile, []byte("ALPHAMELTS_MINP 1.0\n"), 0644)
		require.NoError(t, s.LoadFile(envFile))

		// File no longer sets the mode; the default shows through again.
		mode, _ = s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isobaric", mode)
	})
}

// TestStructuredFormats tests flat TOML/YAML/JSON imports
func TestStructuredFormats(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("TOML", func(t *testing.T) {
		path := filepath.Join(tmpDir, "env.toml")
		os.WriteFile(path, []byte("ALPHAMELTS_MODE = \"isochoric\"\nALPHAMELTS_MAXP = 30000.0\n"), 0644)

		s := New()
		require.NoError(t, s.LoadFile(path))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		maxP, _ := s.Get("ALPHAMELTS_MAXP")
		assert.Equal(t, "isochoric", mode)
		assert.Equal(t, 30000.0, maxP)
	})

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(tmpDir, "env.yaml")
		os.WriteFile(path, []byte("ALPHAMELTS_MODE: isentropic\nALPHAMELTS_DRY_ITER_PATIENCE: 50\n"), 0644)

		s := New()
		require.NoError(t, s.LoadFile(path))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		patience, _ := s.Get("ALPHAMELTS_DRY_ITER_PATIENCE")
		assert.Equal(t, "isentropic", mode)
		assert.Equal(t, int64(50), patience)
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(tmpDir, "env.json")
		os.WriteFile(path, []byte(`{"ALPHAMELTS_MODE": "ptpath", "ALPHAMELTS_DELTAT": -5.0, "ALPHAMELTS_FAILED_ITER_PATIENCE": 10}`), 0644)

		s := New()
		require.NoError(t, s.LoadFile(path))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		deltaT, _ := s.Get("ALPHAMELTS_DELTAT")
		patience, _ := s.Get("ALPHAMELTS_FAILED_ITER_PATIENCE")
		assert.Equal(t, "ptpath", mode)
		assert.Equal(t, -5.0, deltaT)
		assert.Equal(t, int64(10), patience)
	})

	t.Run("NestedDocumentRejected", func(t *testing.T) {
		path := filepath.Join(tmpDir, "nested.toml")
		os.WriteFile(path, []byte("[section]\nkey = 1\n"), 0644)

		s := New()
		err := s.LoadFile(path)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "flat")
	})
}

// TestCLIOverrides tests command-line override parsing
func TestCLIOverrides(t *testing.T) {
	t.Run("EqualsForm", func(t *testing.T) {
		s := New()
		require.NoError(t, s.LoadCLI([]string{"--ALPHAMELTS_MODE=isothermal"}))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isothermal", mode)
	})

	t.Run("SpaceForm", func(t *testing.T) {
		s := New()
		require.NoError(t, s.LoadCLI([]string{"--ALPHAMELTS_MAXT", "2000.0"}))

		maxT, _ := s.Get("ALPHAMELTS_MAXT")
		assert.Equal(t, 2000.0, maxT)
	})

	t.Run("BareFlagIsTrue", func(t *testing.T) {
		s := New()
		require.NoError(t, s.LoadCLI([]string{"--ALPHAMELTS_CELSIUS_OUTPUT"}))

		out, _ := s.Get("ALPHAMELTS_CELSIUS_OUTPUT")
		assert.Equal(t, true, out)
	})

	t.Run("InvalidKeyRejected", func(t *testing.T) {
		s := New()
		err := s.LoadCLI([]string{"--bad.key=1"})
		assert.ErrorIs(t, err, ErrOverrideParse)
	})
}

// TestSourcePrecedence tests the layered load
func TestSourcePrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, "environment.txt")
	os.WriteFile(envFile, []byte("ALPHAMELTS_MODE isothermal\nALPHAMELTS_MINP 5.0\n"), 0644)

	t.Run("FileBeatsDefault", func(t *testing.T) {
		s := New()
		s.Register("ALPHAMELTS_MODE", "isobaric")
		require.NoError(t, s.Load(envFile, nil))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isothermal", mode)

		source, ok := s.ValueSource("ALPHAMELTS_MODE")
		require.True(t, ok)
		assert.Equal(t, SourceFile, source)
	})

	t.Run("EnvBeatsFile", func(t *testing.T) {
		t.Setenv("ALPHAMELTS_MODE", "isochoric")

		s := New()
		s.Register("ALPHAMELTS_MODE", "isobaric")
		require.NoError(t, s.Load(envFile, nil))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isochoric", mode)

		source, _ := s.ValueSource("ALPHAMELTS_MODE")
		assert.Equal(t, SourceEnv, source)
	})

	t.Run("CLIBeatsEnv", func(t *testing.T) {
		t.Setenv("ALPHAMELTS_MODE", "isochoric")

		s := New()
		s.Register("ALPHAMELTS_MODE", "isobaric")
		require.NoError(t, s.Load(envFile, []string{"--ALPHAMELTS_MODE=ptgrid"}))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "ptgrid", mode)

		source, _ := s.ValueSource("ALPHAMELTS_MODE")
		assert.Equal(t, SourceCLI, source)
	})

	t.Run("CustomPrecedence", func(t *testing.T) {
		t.Setenv("ALPHAMELTS_MODE", "isochoric")

		opts := DefaultLoadOptions()
		opts.Sources = []Source{SourceFile, SourceEnv, SourceDefault}

		s := NewWithOptions(opts)
		s.Register("ALPHAMELTS_MODE", "isobaric")
		require.NoError(t, s.LoadWithOptions(envFile, nil, opts))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isothermal", mode)
	})

	t.Run("MissingFileNotFatal", func(t *testing.T) {
		s := New()
		s.Register("ALPHAMELTS_MODE", "isobaric")
		err := s.Load(filepath.Join(tmpDir, "nope.txt"), nil)
		assert.True(t, errors.Is(err, ErrEnvNotFound))

		mode, _ := s.Get("ALPHAMELTS_MODE")
		assert.Equal(t, "isobaric", mode)
	})

	t.Run("MissingFileDoesNotMaskOverrideError", func(t *testing.T) {
		s := New()
		s.Register("ALPHAMELTS_MODE", "isobaric")
		err := s.Load(filepath.Join(tmpDir, "nope.txt"), []string{"--bad.key=1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOverrideParse)
		assert.False(t, errors.Is(err, ErrEnvNotFound))
	})
}

// TestConcurrentLoad exercises the layered load from multiple goroutines
func TestConcurrentLoad(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, "environment.txt")
	os.WriteFile(envFile, []byte("ALPHAMELTS_MODE isothermal\n"), 0644)

	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, s.Load(envFile, nil))
			}
		}()
	}
	wg.Wait()

	mode, _ := s.Get("ALPHAMELTS_MODE")
	assert.Equal(t, "isothermal", mode)
}
