package scan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNeedle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      []byte
		needle     []byte
		wantOffset int64
		wantFound  bool
	}{
		{"found at start", []byte("NFO300rest"), []byte("NFO300"), 0, true},
		{"found mid stream", []byte("junk....NFO300rest"), []byte("NFO300"), 8, true},
		{"not found", []byte("no marker here at all"), []byte("NFO300"), 0, false},
		{"needle spans many windows", bytes.Repeat([]byte{0x00}, 10000), []byte{0x00, 0x00, 0x00}, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			off, found, err := FindNeedle(bytes.NewReader(tc.input), tc.needle)
			require.NoError(t, err)
			assert.Equal(t, tc.wantFound, found)
			if tc.wantFound {
				assert.Equal(t, tc.wantOffset, off)
			}
		})
	}
}

func TestFindNeedle_BoundaryStraddle(t *testing.T) {
	t.Parallel()

	needle := []byte("STRADDLE")
	// needleWindow is 4096; place the needle so it crosses that boundary.
	padding := bytes.Repeat([]byte{'x'}, 4092)
	input := append(append([]byte{}, padding...), needle...)

	off, found, err := FindNeedle(bytes.NewReader(input), needle)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(len(padding)), off)
}

func TestFindNeedle_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := FindNeedle(bytes.NewReader([]byte("abc")), nil)
	assert.Error(t, err)

	longNeedle := bytes.Repeat([]byte{'a'}, needleWindow+1)
	_, _, err = FindNeedle(bytes.NewReader([]byte("abc")), longNeedle)
	assert.Error(t, err)
}

func TestFindPaddingData(t *testing.T) {
	t.Parallel()

	padding := bytes.Repeat(paddingSentinel, 3)
	tail := []byte("NFO300 after padding")
	input := append(append([]byte{}, padding...), tail...)

	r := bytes.NewReader(input)
	off, found, err := FindPaddingData(r, 0, int64(len(input)))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(len(padding)), off)
}

func TestFindPaddingData_PartialFinalBlock(t *testing.T) {
	t.Parallel()

	// The padding run breaks mid-block, not on a 16-byte boundary.
	partial := append(append([]byte{}, paddingSentinel...), []byte("PADDINGXX")...)
	input := append(partial, []byte("END")...)

	r := bytes.NewReader(input)
	off, found, err := FindPaddingData(r, 0, int64(len(input)))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(len(partial)), off)
}

func TestFindPaddingData_NotFound(t *testing.T) {
	t.Parallel()

	input := []byte("nothing resembling padding in here")
	r := bytes.NewReader(input)
	_, found, err := FindPaddingData(r, 0, int64(len(input)))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFormat_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", FormatUnknown.String())
	assert.Equal(t, "NFO300", FormatNFO300.String())
	assert.Equal(t, "InstallShield", FormatInstallShield.String())
}

func buildSetupStream(tag []byte, padRuns int) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Repeat("x", 100))
	buf.Write(bytes.Repeat(paddingSentinel, padRuns))
	buf.Write(tag)
	buf.WriteString(strings.Repeat("y", 200))
	return buf.Bytes()
}

func TestDetectSetupFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tag        []byte
		wantFormat Format
	}{
		{"nfo300", append([]byte("NFO300"), make([]byte, 10)...), FormatNFO300},
		{"installshield", append([]byte("InstallShield"), make([]byte, 3)...), FormatInstallShield},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			input := buildSetupStream(tc.tag, 2)
			desc, err := DetectSetupFormat(bytes.NewReader(input))
			require.NoError(t, err)
			assert.Equal(t, tc.wantFormat, desc.Format)

			// The descriptor's offset must point exactly at the tag bytes.
			tagAt := bytes.Index(input, tc.tag[:6])
			assert.Equal(t, int64(tagAt), desc.Offset)
		})
	}
}

func TestDetectSetupFormat_Unrecognized(t *testing.T) {
	t.Parallel()

	input := append(bytes.Repeat(paddingSentinel, 2), []byte("UNKNOWNTAG000001")...)
	_, err := DetectSetupFormat(bytes.NewReader(input))
	assert.ErrorIs(t, err, ErrFormatUnknown)
}
