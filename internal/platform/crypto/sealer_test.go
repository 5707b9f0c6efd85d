package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer(testKey)
	require.NoError(t, err)
	require.True(t, sealer.Configured())

	sealed, err := sealer.Seal([]byte("net pay 1470.00"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "1470")

	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "net pay 1470.00", string(plain))
}

func TestSealerWithoutKeyPassesThrough(t *testing.T) {
	sealer, err := NewSealer("")
	require.NoError(t, err)
	assert.False(t, sealer.Configured())

	out, err := sealer.Seal([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(out))
}

func TestSealerRejectsShortKey(t *testing.T) {
	_, err := NewSealer("too-short")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "32 bytes"))
}

func TestSealerReadFileOpensSealedFiles(t *testing.T) {
	sealer, err := NewSealer(testKey)
	require.NoError(t, err)
	dir := t.TempDir()

	sealed, err := sealer.Seal([]byte("%PDF-1.3"))
	require.NoError(t, err)
	path := filepath.Join(dir, "slip.pdf"+SealedSuffix)
	require.NoError(t, os.WriteFile(path, sealed, 0o600))

	plain, err := sealer.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(plain))

	_, err = sealer.Open([]byte("x"))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}
