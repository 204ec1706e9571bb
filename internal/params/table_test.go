package params

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"evobot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable("")
	require.NoError(t, err)
	return table
}

// TestClampOrDefault_OutOfRange: mutating quantity to 50 against the
// configured [0.00001, 10.0] range yields the default, not 50.
func TestClampOrDefault_OutOfRange(t *testing.T) {
	table := newTestTable(t)

	v, ok := table.ClampOrDefault("quantity", 50)
	assert.False(t, ok)
	assert.Equal(t, 0.001, v)
}

// TestClampOrDefault_WithinRange passes valid values through untouched.
func TestClampOrDefault_WithinRange(t *testing.T) {
	table := newTestTable(t)

	v, ok := table.ClampOrDefault("quantity", 1.5)
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
}

// TestClampOrDefault_UnknownName: only known trading parameters are bounded.
func TestClampOrDefault_UnknownName(t *testing.T) {
	table := newTestTable(t)

	v, ok := table.ClampOrDefault("custom_factor", 123456)
	assert.True(t, ok)
	assert.Equal(t, 123456.0, v)
}

func TestClampOrDefault_NaN(t *testing.T) {
	table := newTestTable(t)

	v, ok := table.ClampOrDefault("rsi_period", math.NaN())
	assert.False(t, ok)
	assert.Equal(t, 14.0, v)

	v, ok = table.ClampOrDefault("rsi_period", math.Inf(1))
	assert.False(t, ok)
	assert.Equal(t, 14.0, v)
}

func TestSanitize(t *testing.T) {
	table := newTestTable(t)

	cleaned, replaced := table.Sanitize(map[string]float64{
		"quantity":   50, // out of range
		"rsi_period": 21, // fine
		"custom":     7,  // unknown, passes through
	})
	assert.ElementsMatch(t, []string{"quantity"}, replaced)
	assert.Equal(t, 0.001, cleaned["quantity"])
	assert.Equal(t, 21.0, cleaned["rsi_period"])
	assert.Equal(t, 7.0, cleaned["custom"])
}

// TestDefaults_AlwaysInRange: every seeded default must survive its own clamp.
func TestDefaults_AlwaysInRange(t *testing.T) {
	table := newTestTable(t)

	for _, st := range models.AllStrategyTypes {
		defaults := table.Defaults(st)
		assert.NotEmpty(t, defaults, string(st))
		for name, v := range defaults {
			got, ok := table.ClampOrDefault(name, v)
			assert.True(t, ok, "%s/%s", st, name)
			assert.Equal(t, v, got)
		}
	}
}

func TestNewTable_MissingFileUsesBuiltins(t *testing.T) {
	table, err := NewTable("does/not/exist.yaml")
	require.NoError(t, err)

	_, known := table.Lookup("quantity")
	assert.True(t, known)
}

func TestNewTable_FileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ranges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"quantity:\n  min: 1\n  max: 2\n  default: 1.5\n"), 0o644))

	table, err := NewTable(path)
	require.NoError(t, err)

	v, ok := table.ClampOrDefault("quantity", 0.5)
	assert.False(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestNewTable_RejectsInvalidRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ranges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"quantity:\n  min: 5\n  max: 2\n  default: 3\n"), 0o644))

	_, err := NewTable(path)
	assert.Error(t, err)
}
