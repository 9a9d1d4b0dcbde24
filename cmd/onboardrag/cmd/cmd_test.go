package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glinthq/onboardrag/internal/config"
	"github.com/glinthq/onboardrag/pkg/version"
)

func TestVersionCmdDefaultOutput(t *testing.T) {
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "onboardrag")
	assert.Contains(t, output, version.Version)
	assert.Contains(t, output, "commit")
}

func TestVersionCmdShortOutput(t *testing.T) {
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version.Version, strings.TrimSpace(buf.String()))
}

func TestVersionCmdJSONOutput(t *testing.T) {
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--json"})

	require.NoError(t, cmd.Execute())

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestRootCmdListsSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "ask", "stats", "reprocess", "config", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestConfigInitWritesLoadableTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onboardrag.yaml")

	oldPath := configPath
	configPath = path
	t.Cleanup(func() { configPath = oldPath })

	cmd := newConfigInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	// The template is all comments, so loading it yields the defaults.
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retrieval.TopK)

	// A second init refuses to overwrite.
	cmd = newConfigInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	err = cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestIngestCmdRejectsTitleWithMultipleFiles(t *testing.T) {
	cmd := newIngestCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--title", "One Title", "a.pdf", "b.pdf"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--title applies to a single file")
}

func TestStyleIsPlainForNonTerminal(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.False(t, isTTY(buf))
	assert.Equal(t, "plain", style(buf, ansiBold, "plain"))
}
