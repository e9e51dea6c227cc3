package installshield_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instarch/internal/testutil"
	"instarch/pkg/installshield"
)

func TestParser_EntriesAndRoundTrip(t *testing.T) {
	t.Parallel()

	entries := []testutil.InstallShieldEntry{
		{Name: "launcher.exe", Data: []byte("MZ-stub-launcher-bytes")},
		{Name: "data.bin", Data: bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 50)},
	}
	raw := testutil.BuildInstallShield(entries)

	p, err := installshield.New(bytes.NewReader(raw), 0)
	require.NoError(t, err)

	got, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "launcher.exe", got[0].Name)
	assert.Equal(t, int64(len(entries[0].Data)), got[0].Size)
	assert.Equal(t, "data.bin", got[1].Name)
	assert.Equal(t, int64(len(entries[1].Data)), got[1].Size)

	for i, e := range entries {
		r, err := p.EntryReader(got[i])
		require.NoError(t, err)
		decoded, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, e.Data, decoded)
	}
}

// TestParser_ObfuscationRoundTrip_PastContinuousKeyBoundary exercises a
// payload well past the 1024-byte mark the original toolchain used to
// reset its keystream phase at. This module's decoder advances the key
// position continuously across the whole entry instead, so a round trip
// here only succeeds if encoder and decoder agree on that continuous
// advance past the boundary.
func TestParser_ObfuscationRoundTrip_PastContinuousKeyBoundary(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i * 7 % 251)
	}

	entries := []testutil.InstallShieldEntry{
		{Name: "bigfile.dat", Data: payload},
	}
	raw := testutil.BuildInstallShield(entries)

	p, err := installshield.New(bytes.NewReader(raw), 0)
	require.NoError(t, err)

	got, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(len(payload)), got[0].Size)

	r, err := p.EntryReader(got[0])
	require.NoError(t, err)
	decoded, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDetect_FindsTagAmidLeadingJunk(t *testing.T) {
	t.Parallel()

	block := testutil.BuildInstallShield([]testutil.InstallShieldEntry{
		{Name: "file.txt", Data: []byte("hello world")},
	})

	var stream bytes.Buffer
	stream.WriteString("this is leading junk before the header starts")
	stream.Write(block)

	p, err := installshield.Detect(bytes.NewReader(stream.Bytes()))
	require.NoError(t, err)

	entries, err := p.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].Name)
}

func TestDetect_NotFound(t *testing.T) {
	t.Parallel()

	_, err := installshield.Detect(bytes.NewReader([]byte("nothing resembling an installshield header here")))
	assert.Error(t, err)
}

func TestNew_BadSignature(t *testing.T) {
	t.Parallel()

	bogus := make([]byte, 64)
	copy(bogus, "NotInstallShield")

	_, err := installshield.New(bytes.NewReader(bogus), 0)
	assert.Error(t, err)
}
