package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadEssay(t *testing.T) {
	t.Parallel()

	essay, err := readEssay("-", strings.NewReader("  私は\r\n挑戦した。 \n"))
	require.NoError(t, err)
	assert.Equal(t, "私は\n挑戦した。", essay)

	path := filepath.Join(t.TempDir(), "es.txt")
	require.NoError(t, os.WriteFile(path, []byte("ファイルから"), 0o600))
	essay, err = readEssay(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "ファイルから", essay)

	_, err = readEssay("-", strings.NewReader(" \n "))
	assert.EqualError(t, err, "essay is empty")

	_, err = readEssay(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}

func TestNewLedgerIsOptional(t *testing.T) {
	t.Parallel()

	l, err := newLedger("  ")
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = newLedger(filepath.Join(t.TempDir(), "reviews.csv"))
	assert.Error(t, err)
}

func TestNewTransportRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	_, _, err := newTransport(t.Context(), &AIConfig{
		Provider: "claude",
		OpenAI:   &OpenAIConfig{},
		Gemini:   &GeminiConfig{},
	}, nopLogger())
	assert.EqualError(t, err, "unsupported ai provider: claude")
}

func TestNewTransportRequiresKey(t *testing.T) {
	t.Parallel()

	_, _, err := newTransport(t.Context(), &AIConfig{
		Provider: "openai",
		OpenAI:   &OpenAIConfig{},
		Gemini:   &GeminiConfig{},
	}, nopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
