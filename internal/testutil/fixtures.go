package testutil

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"instarch/pkg/crcwz"
)

// NFO300Entry describes one file to embed in a synthesized NFO300 table.
type NFO300Entry struct {
	Name     string
	Checksum int32
	Data     []byte
}

// BuildNFO300 returns an NFO300 tag, quoted-CSV entry table, and the
// concatenated entry payloads, laid out exactly as nfo300.Parser expects:
// tag line, one `"name","checksum","size"` line per entry, then payload
// bytes back to back in entry order. The block can be embedded anywhere in
// a larger byte stream (e.g. behind leading junk) to exercise Detect's
// scan.
func BuildNFO300(entries []NFO300Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString("NFO300\n")
	for _, e := range entries {
		buf.WriteString("\"")
		buf.WriteString(e.Name)
		buf.WriteString("\",\"")
		buf.WriteString(strconv.FormatInt(int64(e.Checksum), 10))
		buf.WriteString("\",\"")
		buf.WriteString(strconv.FormatInt(int64(len(e.Data)), 10))
		buf.WriteString("\"\n")
	}
	for _, e := range entries {
		buf.Write(e.Data)
	}
	return buf.Bytes()
}

// InstallShieldEntry describes one file to embed in a synthesized
// InstallShield table.
type InstallShieldEntry struct {
	Name string
	Data []byte
}

var installShieldObfuscationConstant = [4]byte{0x13, 0x35, 0x86, 0x07}

// BuildInstallShield returns a full InstallShield header, fixed-size entry
// records, and obfuscated payloads laid out exactly as
// installshield.Parser expects. The block can be embedded anywhere in a
// larger byte stream to exercise Detect's scan.
func BuildInstallShield(entries []InstallShieldEntry) []byte {
	var buf bytes.Buffer

	var sig [14]byte
	copy(sig[:], "InstallShield")
	buf.Write(sig[:])
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(entries))) // NumFiles
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))            // Type
	buf.Write(make([]byte, 8))                                        // X4
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0))             // X5
	buf.Write(make([]byte, 16))                                       // X6

	for _, e := range entries {
		var name [260]byte
		copy(name[:], e.Name)
		buf.Write(name[:])
		_ = binary.Write(&buf, binary.LittleEndian, uint32(0))             // EncodedFlags
		_ = binary.Write(&buf, binary.LittleEndian, uint32(0))             // X3
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(e.Data)))   // FileLen
		buf.Write(make([]byte, 8))                                        // X5
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))             // IsUnicodeLauncher
		buf.Write(make([]byte, 30))                                       // X7

		buf.Write(installShieldEncode(e.Data, e.Name))
	}

	return buf.Bytes()
}

// installShieldEncode applies the forward transform whose inverse is
// installshield.Parser.EntryReader's decodeByte, so a parser reading this
// output recovers data unchanged.
func installShieldEncode(data []byte, name string) []byte {
	key := []byte(name)
	for i := range key {
		key[i] ^= installShieldObfuscationConstant[i%len(installShieldObfuscationConstant)]
	}

	out := make([]byte, len(data))
	for i, p := range data {
		k := key[i%len(key)]
		notP := ^p
		x := k ^ notP
		out[i] = x>>4 | x<<4
	}
	return out
}

// WzPatchAddRecord returns the record bytes for an add operation. checksum
// should be the crcwz.Digest sum of data.
func WzPatchAddRecord(path string, data []byte, checksum uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString(path)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	_ = binary.Write(&buf, binary.LittleEndian, checksum)
	buf.Write(data)
	return buf.Bytes()
}

// WzPatchRemoveRecord returns the record bytes for a remove operation.
func WzPatchRemoveRecord(path string) []byte {
	return append([]byte(path), 2)
}

// WzPatchModifyHeader returns the leading bytes of a modify record: path,
// op byte, and the old/new checksums. The block program (see
// WzPatchNewBlock, WzPatchRepeatBlock, WzPatchOldBlock, WzPatchEndBlock)
// must follow immediately.
func WzPatchModifyHeader(path string, oldChecksum, newChecksum uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString(path)
	buf.WriteByte(1)
	_ = binary.Write(&buf, binary.LittleEndian, oldChecksum)
	_ = binary.Write(&buf, binary.LittleEndian, newChecksum)
	return buf.Bytes()
}

// WzPatchNewBlock returns a literal-data block: a 4-byte header tagged
// 0x8 in its top nibble, followed by data.
func WzPatchNewBlock(data []byte) []byte {
	value := uint32(0x8<<28) | uint32(len(data))
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, value)
	buf.Write(data)
	return buf.Bytes()
}

// WzPatchRepeatBlock returns a repeated-byte block: a 4-byte header tagged
// 0xC in its top nibble, packing the repeated byte and run length.
func WzPatchRepeatBlock(b byte, length uint32) []byte {
	value := uint32(0xC<<28) | uint32(b) | (length&0xFFFFF)<<8
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return buf
}

// WzPatchOldBlock returns a copy-from-old-file block: a 4-byte header (top
// nibble clear of 0x8/0xC) holding the length, followed by a 4-byte
// offset into the old file.
func WzPatchOldBlock(offset, length uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], length&0x0FFFFFFF)
	binary.LittleEndian.PutUint32(buf[4:8], offset)
	return buf
}

// WzPatchEndBlock returns the 4-byte zero value terminating a modify
// record's block program.
func WzPatchEndBlock() []byte {
	return []byte{0, 0, 0, 0}
}

// BuildWzPatchFile wraps records (a concatenation of the record builders
// above) into a full WzPatch file: magic, a header whose checksum matches
// the compressed stream, and the zlib-compressed record bytes themselves.
func BuildWzPatchFile(t *testing.T, version int32, records []byte) []byte {
	t.Helper()

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(records)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	d := crcwz.New()
	_, err = d.Write(compressed.Bytes())
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.WriteString("WzPatch")
	buf.WriteByte(0x1A)
	_ = binary.Write(&buf, binary.LittleEndian, version)
	_ = binary.Write(&buf, binary.LittleEndian, d.Sum32())
	buf.Write(compressed.Bytes())

	return buf.Bytes()
}
