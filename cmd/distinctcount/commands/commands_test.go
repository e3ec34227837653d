package commands_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/distinctcount/cmd/distinctcount/commands"
	"github.com/Sumatoshi-tech/distinctcount/pkg/config"
	"github.com/Sumatoshi-tech/distinctcount/pkg/persist"
)

// testEnv is an isolated working area with its own config file.
type testEnv struct {
	dir        string
	configPath string
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "distinctcount.yaml")
	content := fmt.Sprintf("snapshot:\n  directory: %q\n%s", dir, extraConfig)

	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return &testEnv{dir: dir, configPath: configPath}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// run executes the CLI with args and stdin, returning stdout and stderr.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := commands.NewRootCommand()

	var stdout, stderr bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func keys(prefix string, n int) string {
	var sb strings.Builder

	for i := range n {
		fmt.Fprintf(&sb, "%s-%d\n", prefix, i)
	}

	return sb.String()
}

func writeKeys(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

type countJSON struct {
	Variant   string  `json:"variant"`
	Estimator string  `json:"estimator"`
	Snapshot  string  `json:"snapshot"`
	Lines     int64   `json:"lines"`
	Count     uint64  `json:"count"`
	Estimate  float64 `json:"estimate"`
	Precision int     `json:"precision"`
}

func decodeCount(t *testing.T, out string) countJSON {
	t.Helper()

	var result countJSON

	require.NoError(t, json.Unmarshal([]byte(out), &result))

	return result
}

func TestRoot_HelpListsCommands(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	out, _, err := env.run(t, "", "--help")
	require.NoError(t, err)

	for _, name := range []string{"count", "merge", "downsize", "inspect", "config", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRoot_UnknownCommand(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "", "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRoot_VerboseAndQuietExclusive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "", "--verbose", "--quiet", "count")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	out, _, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "distinctcount ")
	assert.Contains(t, out, "commit:")
}

func TestCount_Stdin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	input := keys("user", 1000) + keys("user", 1000) + "\n\n"

	out, _, err := env.run(t, input, "count", "--output", "json")
	require.NoError(t, err)

	result := decodeCount(t, out)
	assert.Equal(t, int64(2000), result.Lines)
	assert.Equal(t, "ultraloglog", result.Variant)
	assert.Equal(t, config.DefaultSketchPrecision, result.Precision)
	assert.Equal(t, "optimal_fgra", result.Estimator)
	assert.InEpsilon(t, 1000, result.Estimate, 0.1)
	assert.Empty(t, result.Snapshot)
}

func TestCount_Files(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	first := env.path("a.txt")
	second := env.path("b.txt")
	writeKeys(t, first, keys("k", 600))
	writeKeys(t, second, keys("k", 1200))

	out, _, err := env.run(t, "", "count", "-o", "json", "--variant", "hyperloglog", "-p", "14", first, second)
	require.NoError(t, err)

	result := decodeCount(t, out)
	assert.Equal(t, int64(1800), result.Lines)
	assert.Equal(t, "hyperloglog", result.Variant)
	assert.Equal(t, 14, result.Precision)
	assert.Equal(t, "small_range_corrected_raw", result.Estimator)
	assert.InEpsilon(t, 1200, result.Estimate, 0.1)
}

func TestCount_MissingFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "", "count", env.path("missing.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCount_EstimatorAndMartingale(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	input := keys("m", 5000)

	out, _, err := env.run(t, input, "count", "-o", "json", "--martingale")
	require.NoError(t, err)

	result := decodeCount(t, out)
	assert.Equal(t, "martingale", result.Estimator)
	assert.InEpsilon(t, 5000, result.Estimate, 0.1)

	out, _, err = env.run(t, input, "count", "-o", "json", "--martingale", "--estimator", "maximum_likelihood")
	require.NoError(t, err)

	result = decodeCount(t, out)
	assert.Equal(t, "maximum_likelihood", result.Estimator)
	assert.InEpsilon(t, 5000, result.Estimate, 0.1)
}

func TestCount_InvalidFlags(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"precision", []string{"count", "-p", "2"}, config.ErrInvalidPrecision},
		{"variant", []string{"count", "--variant", "loglog"}, config.ErrInvalidVariant},
		{"estimator", []string{"count", "--variant", "ultraloglog", "--estimator", "corrected_raw"}, config.ErrInvalidEstimator},
		{"output", []string{"count", "-o", "xml"}, commands.ErrUnknownOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := env.run(t, "a\n", tt.args...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCount_MemoryBudget(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "sketch:\n  memory_budget: 1KiB\n  variant: hyperloglog\n")

	out, _, err := env.run(t, "x\n", "count", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 10, decodeCount(t, out).Precision)

	out, _, err = env.run(t, "x\n", "count", "-o", "json", "-p", "6")
	require.NoError(t, err)
	assert.Equal(t, 6, decodeCount(t, out).Precision)
}

func TestCount_TableOutput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	out, _, err := env.run(t, keys("t", 2500), "count")
	require.NoError(t, err)

	assert.Contains(t, out, "Distinct count")
	assert.Contains(t, out, "Lines read")
	assert.Contains(t, out, "2,500")
	assert.Contains(t, out, "ultraloglog")
}

func TestCount_YAMLOutput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	out, _, err := env.run(t, keys("y", 10), "count", "-o", "yaml")
	require.NoError(t, err)

	var result map[string]any

	require.NoError(t, yaml.Unmarshal([]byte(out), &result))
	assert.Equal(t, 10, result["lines"])
	assert.Equal(t, "ultraloglog", result["variant"])
}

func TestCount_SaveNamedSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	require.NoError(t, os.WriteFile(env.configPath,
		fmt.Appendf(nil, "snapshot:\n  directory: %q\n  codec: json\n", env.dir), 0o600))

	out, _, err := env.run(t, keys("s", 300), "count", "-o", "json", "--save", "visitors")
	require.NoError(t, err)

	result := decodeCount(t, out)
	assert.Equal(t, env.path("visitors.json"), result.Snapshot)

	var snap persist.Snapshot

	require.NoError(t, persist.LoadFile(result.Snapshot, persist.NewJSONCodec(), &snap))
	assert.Equal(t, "ultraloglog", snap.Variant)
	assert.Equal(t, config.DefaultSketchPrecision, snap.Precision)
}

func TestCount_SavePathSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	path := env.path("day1.dcs")

	_, _, err := env.run(t, keys("d", 100), "count", "--save", path)
	require.NoError(t, err)

	var snap persist.Snapshot

	require.NoError(t, persist.LoadFile(path, &persist.BinaryCodec{}, &snap))
	assert.Equal(t, "ultraloglog", snap.Variant)
}

func TestCount_SaveUnknownExtension(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "a\n", "count", "--save", env.path("out.xml"))
	require.ErrorIs(t, err, persist.ErrUnknownCodec)
}

func TestMerge_Snapshots(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, keys("a", 2000), "count", "-p", "12", "--save", env.path("a.dcs"))
	require.NoError(t, err)

	_, _, err = env.run(t, keys("b", 1000), "count", "-p", "10", "--save", env.path("b.json"))
	require.NoError(t, err)

	out, _, err := env.run(t, "", "merge", env.path("ab.gob"), env.path("a.dcs"), env.path("b.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "merged 2 snapshots")

	var snap persist.Snapshot

	require.NoError(t, persist.LoadFile(env.path("ab.gob"), persist.NewGobCodec(), &snap))
	assert.Equal(t, 10, snap.Precision)

	sketch, err := snap.Sketch()
	require.NoError(t, err)
	assert.InEpsilon(t, 3000, sketch.Estimate(), 0.1)
}

func TestMerge_Quiet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, keys("a", 10), "count", "--save", "one")
	require.NoError(t, err)

	out, _, err := env.run(t, "", "--quiet", "merge", "both", "one", "one")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, env.path("both.dcs"))
}

func TestMerge_VariantMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "a\n", "count", "--variant", "hyperloglog", "--save", "h")
	require.NoError(t, err)

	_, _, err = env.run(t, "a\n", "count", "--variant", "ultraloglog", "--save", "u")
	require.NoError(t, err)

	_, _, err = env.run(t, "", "merge", "out", "h", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different variants")
}

func TestMerge_MissingInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "", "merge", "out", "missing")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMerge_NeedsInputs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "", "merge", "out")
	require.Error(t, err)
}

func TestDownsize(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, keys("x", 4000), "count", "-p", "14", "--save", "big")
	require.NoError(t, err)

	small := env.path("small.json")

	out, _, err := env.run(t, "", "downsize", "big", small, "-p", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "p=14 to p=8")

	var snap persist.Snapshot

	require.NoError(t, persist.LoadFile(small, persist.NewJSONCodec(), &snap))
	assert.Equal(t, 8, snap.Precision)
}

func TestDownsize_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, keys("x", 10), "count", "--save", "in")
	require.NoError(t, err)

	_, _, err = env.run(t, "", "downsize", "in", "out")
	require.Error(t, err, "precision flag is required")

	_, _, err = env.run(t, "", "downsize", "in", "out", "-p", "2")
	require.Error(t, err)

	_, _, err = env.run(t, "", "downsize", "in", "out", "-p", "-1")
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, keys("i", 3000), "count", "--variant", "hyperloglog", "-p", "11", "--save", "hll")
	require.NoError(t, err)

	out, _, err := env.run(t, "", "inspect", "hll", "-o", "json")
	require.NoError(t, err)

	var result struct {
		Estimates []struct {
			Name     string  `json:"name"`
			Estimate float64 `json:"estimate"`
		} `json:"estimates"`
		Variant                string  `json:"variant"`
		Registers              uint    `json:"registers"`
		StateSize              int     `json:"state_size"`
		StateChangeProbability float64 `json:"state_change_probability"`
		LowerBound             float64 `json:"lower_bound"`
		UpperBound             float64 `json:"upper_bound"`
		Precision              int     `json:"precision"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "hyperloglog", result.Variant)
	assert.Equal(t, 11, result.Precision)
	assert.Equal(t, uint(2048), result.Registers)
	assert.Equal(t, 1536, result.StateSize)
	assert.Greater(t, result.StateChangeProbability, 0.0)
	assert.Less(t, result.StateChangeProbability, 1.0)
	require.Len(t, result.Estimates, 3)

	for _, e := range result.Estimates {
		assert.InEpsilon(t, 3000, e.Estimate, 0.15, e.Name)
	}

	assert.Less(t, result.LowerBound, result.Estimates[0].Estimate)
	assert.Greater(t, result.UpperBound, result.Estimates[0].Estimate)
}

func TestInspect_Table(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, keys("i", 100), "count", "--save", "ull")
	require.NoError(t, err)

	out, _, err := env.run(t, "", "inspect", "ull")
	require.NoError(t, err)

	assert.Contains(t, out, "State change probability")
	assert.Contains(t, out, "Estimate (optimal_fgra)")
	assert.Contains(t, out, "Estimate (maximum_likelihood)")
	assert.Contains(t, out, "4.0 KiB")
}

func TestInspect_Corrupt(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	path := env.path("bad.dcs")

	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o600))

	_, _, err := env.run(t, "", "inspect", path)
	require.ErrorIs(t, err, persist.ErrCorruptSnapshot)
}

func TestInspect_SaturatedSnapshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	path := env.path("saturated.json")

	snap := &persist.Snapshot{
		Variant:   "hyperloglog",
		Precision: 3,
		State:     bytes.Repeat([]byte{0xFF}, 6),
	}
	require.NoError(t, persist.SaveFile(path, persist.NewJSONCodec(), snap))

	out, _, err := env.run(t, "", "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Estimate (maximum_likelihood)")
	assert.Contains(t, out, "+Inf")
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "sketch:\n  variant: hyperloglog\n")

	out, _, err := env.run(t, "", "--log-level", "warn", "config", "show")
	require.NoError(t, err)

	var cfg config.Config

	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "hyperloglog", cfg.Sketch.Variant)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, env.dir, cfg.Snapshot.Directory)
}

func TestConfigShow_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, _, err := env.run(t, "", "--log-level", "loud", "config", "show")
	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
}

func TestVerboseLogsToStderr(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	_, stderr, err := env.run(t, keys("v", 10), "--verbose", "--log-format", "json", "count", "--save", "verbose")
	require.NoError(t, err)

	assert.Contains(t, stderr, `"msg":"count finished"`)
	assert.Contains(t, stderr, `"trace_id"`)
	assert.Contains(t, stderr, `"msg":"snapshot saved"`)
}

func TestMetricsFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	metricsPath := env.path("metrics.prom")

	_, _, err := env.run(t, keys("p", 50), "--metrics-file", metricsPath, "count")
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "distinctcount_items_added")
	assert.Contains(t, string(data), "distinctcount_operation_duration")
}

func TestPrintError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	commands.PrintError(&buf, persist.ErrCorruptSnapshot)
	assert.Contains(t, buf.String(), "Error: persist: corrupt snapshot")
}
