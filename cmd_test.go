package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bodul/crossword-export/xword"
)

func runCLI(t *testing.T, stdin []byte, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	clearConfigEnv(t)

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(bytes.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writePuzzleFile(t *testing.T, raw xword.RawPuzzle) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "puzzle.json")
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writePuzzleFile(t, newTestRaw())

	out, _, err := runCLI(t, nil, "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "valid 3×3 puzzle: 2 across, 2 down\n", out)

	out, _, err = runCLI(t, nil, "validate", "--json", path)
	require.NoError(t, err)
	var n xword.Numbering
	require.NoError(t, json.Unmarshal([]byte(out), &n))
	assert.Equal(t, []int{1, 3}, xword.Numbers(n.Across))
	assert.Equal(t, []int{1, 2}, xword.Numbers(n.Down))
}

func TestValidateCommand_Invalid(t *testing.T) {
	raw := newTestRaw()
	raw.DownClues = raw.DownClues[:1]
	raw.Author = "bad\x00author"

	_, stderr, err := runCLI(t, nil, "validate", writePuzzleFile(t, raw))
	require.ErrorIs(t, err, errInvalidPuzzle)
	assert.Contains(t, stderr, "  author: author contains a NUL byte\n")
	assert.Contains(t, stderr, "  downClues: expected 2 clues, found 1\n")
}

func TestValidateCommand_Format(t *testing.T) {
	raw := newTestRaw()
	raw.Grid[0] = xword.Open("STAR")
	path := writePuzzleFile(t, raw)

	_, _, err := runCLI(t, nil, "validate", "--format", "puz", path)
	assert.ErrorIs(t, err, xword.ErrRebusUnsupported)

	_, _, err = runCLI(t, nil, "validate", "--format", "puz2", path)
	assert.NoError(t, err)
}

func TestExportAndInspectCommands(t *testing.T) {
	path := writePuzzleFile(t, newTestRaw())

	_, _, err := runCLI(t, nil, "export", "--format", "puz", path)
	require.NoError(t, err)

	puzPath := strings.TrimSuffix(path, ".json") + ".puz"
	require.FileExists(t, puzPath)

	out, _, err := runCLI(t, nil, "inspect", puzPath)
	require.NoError(t, err)
	var info xword.PuzInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2", info.Version)
	assert.Equal(t, "Test Puzzle", info.Title)
	assert.Equal(t, []string{"Top row", "Left column", "Right column", "Bottom row"}, info.Clues)

	data, err := os.ReadFile(puzPath)
	require.NoError(t, err)
	data[len(data)-2] ^= 0x01
	require.NoError(t, os.WriteFile(puzPath, data, 0o644))
	_, _, err = runCLI(t, nil, "inspect", puzPath)
	assert.ErrorIs(t, err, xword.ErrCorruptPuz)
}

func TestExportImportRoundTrip(t *testing.T) {
	raw := newTestRaw()
	raw.Grid[8] = xword.Open("Z")
	path := writePuzzleFile(t, raw)

	doc, _, err := runCLI(t, nil, "export", "-f", "ipuz", "-o", "-", path)
	require.NoError(t, err)
	assert.Contains(t, doc, `"http://ipuz.org/crossword#1"`)

	out, _, err := runCLI(t, []byte(doc), "import", "-")
	require.NoError(t, err)
	var back xword.RawPuzzle
	require.NoError(t, json.Unmarshal([]byte(out), &back))
	assert.Equal(t, raw, back)

	// ipuz on stdin is recognised without an extension.
	out, _, err = runCLI(t, []byte(doc), "validate", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "valid 3×3 puzzle")
}

func TestExportCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	ipuzPath := filepath.Join(dir, "grid.ipuz")
	out, err := xword.Convert(newTestRaw(), xword.FormatText)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ipuzPath, out.Data, 0o644))

	_, _, err = runCLI(t, nil, "export", "--format", "text", ipuzPath)
	assert.ErrorContains(t, err, "refusing to overwrite")

	_, _, err = runCLI(t, nil, "export", "--format", "jpz", ipuzPath)
	assert.ErrorIs(t, err, xword.ErrUnknownFormat)

	_, _, err = runCLI(t, nil, "export", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "read input")

	_, _, err = runCLI(t, nil, "export")
	assert.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = "1s"

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zap.NewNop()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
