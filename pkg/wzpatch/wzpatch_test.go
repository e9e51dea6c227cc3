package wzpatch_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instarch/internal/testutil"
	"instarch/pkg/wzpatch"
)

func TestOpen_BadMagic(t *testing.T) {
	t.Parallel()

	_, err := wzpatch.Open(bytes.NewReader([]byte("not a wzpatch file at all, just junk")))
	assert.ErrorIs(t, err, wzpatch.ErrBadMagic)
}

func TestOpen_VersionAndChecksum(t *testing.T) {
	t.Parallel()

	raw := testutil.BuildWzPatchFile(t, 7, testutil.WzPatchRemoveRecord("gone.txt"))

	p, err := wzpatch.Open(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, int32(7), p.Version())
	assert.NoError(t, p.VerifyChecksum())
}

func TestVerifyChecksum_Mismatch(t *testing.T) {
	t.Parallel()

	raw := testutil.BuildWzPatchFile(t, 1, testutil.WzPatchRemoveRecord("gone.txt"))
	// Corrupt a byte of the compressed stream, after the header.
	raw[len(raw)-1] ^= 0xFF

	p, err := wzpatch.Open(bytes.NewReader(raw))
	require.NoError(t, err)

	err = p.VerifyChecksum()
	require.Error(t, err)
	var mismatch *wzpatch.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "patch file", mismatch.Scope)
}

// TestProcess_BlockProgramRoundTrip drives every block kind (old-copy,
// new-literal, repeat) through a modify record and checks the Inspector's
// accumulated byte counts match what each block declared, exercising the
// block-encoding round trip independent of on-disk reconstruction.
func TestProcess_BlockProgramRoundTrip(t *testing.T) {
	t.Parallel()

	var records bytes.Buffer
	records.Write(testutil.WzPatchAddRecord("new.bin", []byte("added content"), 0))
	records.Write(testutil.WzPatchModifyHeader("changed.bin", 0xAAAA, 0xBBBB))
	records.Write(testutil.WzPatchOldBlock(10, 20))
	records.Write(testutil.WzPatchNewBlock([]byte("literal-block-data")))
	records.Write(testutil.WzPatchRepeatBlock('x', 30))
	records.Write(testutil.WzPatchEndBlock())
	records.Write(testutil.WzPatchRemoveRecord("old.bin"))

	raw := testutil.BuildWzPatchFile(t, 1, records.Bytes())

	p, err := wzpatch.Open(bytes.NewReader(raw))
	require.NoError(t, err)
	require.NoError(t, p.VerifyChecksum())

	ins := wzpatch.NewInspector()
	require.NoError(t, p.Process(ins))

	info := ins.Info()
	require.Len(t, info.Added, 1)
	assert.Equal(t, "new.bin", info.Added[0].Path)
	assert.Equal(t, len("added content"), info.Added[0].Size)

	require.Len(t, info.Modified, 1)
	assert.Equal(t, "changed.bin", info.Modified[0].Path)
	assert.Equal(t, 20+len("literal-block-data")+30, info.Modified[0].Bytes)

	require.Len(t, info.Removed, 1)
	assert.Equal(t, "old.bin", info.Removed[0])
}

func TestProcess_AddRecordStreamsDataToHandler(t *testing.T) {
	t.Parallel()

	data := []byte("the bytes a handler should see")
	raw := testutil.BuildWzPatchFile(t, 1, testutil.WzPatchAddRecord("f.bin", data, 0x1234))

	p, err := wzpatch.Open(bytes.NewReader(raw))
	require.NoError(t, err)

	var captured []byte
	h := &captureHandler{onAdd: func(path string, r io.Reader, length, checksum uint32) error {
		assert.Equal(t, "f.bin", path)
		assert.Equal(t, uint32(len(data)), length)
		assert.Equal(t, uint32(0x1234), checksum)
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		captured = b
		return nil
	}}

	require.NoError(t, p.Process(h))
	assert.Equal(t, data, captured)
}

// captureHandler implements wzpatch.Handler, delegating only the callbacks
// a test cares about and no-op'ing the rest.
type captureHandler struct {
	onAdd func(path string, data io.Reader, length, checksum uint32) error
}

func (c *captureHandler) OnAdd(path string, data io.Reader, length, checksum uint32) error {
	if c.onAdd != nil {
		return c.onAdd(path, data, length, checksum)
	}
	return nil
}
func (c *captureHandler) OnRemove(path string) error                        { return nil }
func (c *captureHandler) OnModify(path string, oldChecksum, newChecksum uint32) error { return nil }
func (c *captureHandler) OnModRepeat(b byte, length uint32) error           { return nil }
func (c *captureHandler) OnModNewBlock(data io.Reader, length uint32) error { return nil }
func (c *captureHandler) OnModOldBlock(offset, length uint32) error         { return nil }
func (c *captureHandler) OnModEnd(newChecksum uint32) error                 { return nil }
