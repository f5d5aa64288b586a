package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const biology = "Mitochondria produce energy for cells. Cells divide by mitosis. Plants use photosynthesis to make sugar."

// run executes the CLI with a config path that does not exist, so defaults apply.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CI", "true")
	cfg := filepath.Join(t.TempDir(), "missing.yaml")
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAsk(t *testing.T) {
	path := writeFile(t, "bio.txt", biology)
	out, errOut, err := run(t, "ask", "What produces energy for cells?", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Mitochondria produce energy for cells.")
	assert.Contains(t, out, "Sources")
	assert.Contains(t, out, "[1] bio.txt (")
	assert.Contains(t, errOut, "[1/1] bio.txt")
}

func TestVerboseLogsIngestSection(t *testing.T) {
	path := writeFile(t, "bio.txt", biology)
	_, errOut, err := run(t, "--verbose", "search", "mitosis", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "=== Loading documents ===")
	assert.Contains(t, errOut, "[1/1] bio.txt")
	assert.Contains(t, errOut, "1 documents, 1 passages indexed")
}

func TestAskRejectsUnknownFormat(t *testing.T) {
	path := writeFile(t, "bio.txt", biology)
	_, _, err := run(t, "ask", "--format", "haiku", "q", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown answer format")
}

func TestAskSkipsUnsupportedFiles(t *testing.T) {
	bad := writeFile(t, "slides.pptx", "x")
	good := writeFile(t, "bio.txt", biology)
	out, errOut, err := run(t, "ask", "What is mitosis?", bad, good)
	require.NoError(t, err)
	assert.Contains(t, errOut, "[ERROR] skipped:")
	assert.Contains(t, errOut, "slides.pptx")
	assert.Contains(t, out, "mitosis")
}

func TestSearch(t *testing.T) {
	path := writeFile(t, "bio.txt", biology)
	out, _, err := run(t, "search", "-k", "3", "photosynthesis sugar", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1. bio.txt")
	assert.Contains(t, out, "score=")
}

func TestNotesAndFlashcards(t *testing.T) {
	path := writeFile(t, "bio.txt", biology)
	out, _, err := run(t, "notes", "mitosis", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Notes: mitosis")
	assert.Contains(t, out, "- ")

	out, _, err = run(t, "flashcards", "-n", "2", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Flashcard 1")
}

func TestSummary(t *testing.T) {
	path := writeFile(t, "bio.txt", biology)
	out, _, err := run(t, "summary", "-s", "1", path)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyrag.yaml")
	out, _, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	assert.FileExists(t, path)

	_, _, err = run(t, "config", "init", path)
	assert.Error(t, err)
	_, _, err = run(t, "config", "init", "--force", path)
	assert.NoError(t, err)

	out, _, err = run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "provider: hashvec")
	assert.Contains(t, out, "top_k: 5")
}
