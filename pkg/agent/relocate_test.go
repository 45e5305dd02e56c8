package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRelocateOutputsSortsByExtension(t *testing.T) {
	rec := &sinkRecorder{}
	r := testRunner(t, rec)
	scanDir := t.TempDir()
	r.cfg.ScanDirs = []string{scanDir}

	chartPath := filepath.Join(scanDir, "revenue_chart.png")
	tablePath := filepath.Join(scanDir, "sub", "metrics.csv")
	writeFile(t, chartPath, "png bytes")
	writeFile(t, tablePath, "a,b\n1,2\n")
	writeFile(t, filepath.Join(scanDir, "notes.txt"), "ignored extension")

	result := map[string]any{
		"response": "Chart saved to " + chartPath,
	}
	moved := r.relocateOutputs(result, time.Now())

	require.Len(t, moved, 2)
	dests := map[string]string{}
	for _, m := range moved {
		dests[filepath.Base(m.From)] = m.To
	}
	assert.Equal(t, filepath.Join(r.cfg.CitationsDir, "revenue_chart.png"), dests["revenue_chart.png"])
	assert.Equal(t, filepath.Join(r.cfg.ExportsDir, "metrics.csv"), dests["metrics.csv"])

	// Copies exist with the original content.
	data, err := os.ReadFile(dests["revenue_chart.png"])
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	// References in the result are rewritten to the new location.
	assert.Equal(t, "Chart saved to "+dests["revenue_chart.png"], result["response"])
}

func TestRelocateSkipsOldFiles(t *testing.T) {
	rec := &sinkRecorder{}
	r := testRunner(t, rec)
	scanDir := t.TempDir()
	r.cfg.ScanDirs = []string{scanDir}

	stale := filepath.Join(scanDir, "old.png")
	writeFile(t, stale, "stale")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	moved := r.relocateOutputs(map[string]any{}, time.Now())
	assert.Empty(t, moved)
}

func TestRelocateSkipsFilesAlreadyUnderOutputRoot(t *testing.T) {
	rec := &sinkRecorder{}
	r := testRunner(t, rec)
	// Scan the output root itself; nothing should be re-copied.
	r.cfg.ScanDirs = []string{r.cfg.OutputRoot}

	writeFile(t, filepath.Join(r.cfg.CitationsDir, "already.png"), "here")

	moved := r.relocateOutputs(map[string]any{}, time.Now())
	assert.Empty(t, moved)
}

func TestRelocateMissingScanDir(t *testing.T) {
	rec := &sinkRecorder{}
	r := testRunner(t, rec)
	r.cfg.ScanDirs = []string{filepath.Join(t.TempDir(), "does-not-exist")}

	moved := r.relocateOutputs(map[string]any{}, time.Now())
	assert.Empty(t, moved)
}

func TestCopyToOutputCollisions(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	src := filepath.Join(srcDir, "export.csv")
	writeFile(t, src, "a,b\n")

	// Same name, same size: treated as already copied.
	writeFile(t, filepath.Join(destDir, "export.csv"), "x,y\n")
	dest, err := copyToOutput(src, destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "export.csv"), dest)

	// Same name, different size: numeric suffix.
	other := filepath.Join(srcDir, "export2.csv")
	writeFile(t, other, "much longer content\n")
	require.NoError(t, os.Rename(other, filepath.Join(srcDir, "export.csv")))
	dest, err = copyToOutput(filepath.Join(srcDir, "export.csv"), destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "export_1.csv"), dest)
}

func TestRewriteResultPathsOnlyTouchesStringFields(t *testing.T) {
	result := map[string]any{
		"response": "see /tmp/a.png",
		"text":     "also /tmp/a.png",
		"count":    3,
	}
	rewriteResultPaths(result, map[string]string{"/tmp/a.png": "/output/citations/a.png"})

	assert.Equal(t, "see /output/citations/a.png", result["response"])
	assert.Equal(t, "also /output/citations/a.png", result["text"])
	assert.Equal(t, 3, result["count"])
}
