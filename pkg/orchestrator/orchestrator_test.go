package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instarch/internal/testutil"
)

// writeInstaller wraps block in a little leading junk followed by a run of
// padding sentinels, the way a real self-extracting installer carries a PE
// image ahead of its setup table, and writes the result to a file under dir.
func writeInstaller(t *testing.T, dir, name string, block []byte) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("MZ-stand-in-for-a-PE-image")
	buf.Write(bytes.Repeat([]byte("PADDINGXXPADDING"), 2))
	buf.Write(block)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func zipBytes(t *testing.T, name string, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractOne_NFO300PlainFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	block := testutil.BuildNFO300([]testutil.NFO300Entry{
		{Name: "readme.txt", Checksum: 1, Data: []byte("hello there")},
		{Name: "data.bin", Checksum: 2, Data: []byte{0x01, 0x02, 0x03}},
	})
	installer := writeInstaller(t, root, "setup.exe", block)
	outDir := filepath.Join(root, "out")

	rep, err := ExtractOne(context.Background(), Request{InstallerPath: installer, OutDir: outDir})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"readme.txt", "data.bin"}, rep.EntryNames)
	assert.Empty(t, rep.ExpandedFiles)
	assert.Empty(t, rep.RemovedFiles)

	content, err := os.ReadFile(filepath.Join(outDir, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(content))

	_, err = os.Stat(rep.ReportPath)
	require.NoError(t, err)
}

func TestExtractOne_ZipPayloadExpandedInPlace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inner := zipBytes(t, "deep/final.txt", []byte("nested payload"))
	block := testutil.BuildNFO300([]testutil.NFO300Entry{
		{Name: "data.zip", Checksum: 1, Data: inner},
	})
	installer := writeInstaller(t, root, "setup.exe", block)
	outDir := filepath.Join(root, "out")

	rep, err := ExtractOne(context.Background(), Request{InstallerPath: installer, OutDir: outDir})
	require.NoError(t, err)

	assert.Equal(t, "zip-split", rep.Kind.String())
	content, err := os.ReadFile(filepath.Join(outDir, "deep", "final.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested payload", string(content))
}

func TestExtractOne_RemovePrefixesDeletesMatchingOutputFilesOnly(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	block := testutil.BuildNFO300([]testutil.NFO300Entry{
		{Name: "keep.dat", Checksum: 1, Data: []byte("keep")},
		{Name: "tmp_scratch.dat", Checksum: 2, Data: []byte("scratch")},
	})
	installer := writeInstaller(t, root, "setup.exe", block)
	outDir := filepath.Join(root, "out")

	rep, err := ExtractOne(context.Background(), Request{
		InstallerPath:  installer,
		OutDir:         outDir,
		RemovePrefixes: []string{"tmp_"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tmp_scratch.dat"}, rep.RemovedFiles)

	_, err = os.Stat(filepath.Join(outDir, "keep.dat"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "tmp_scratch.dat"))
	assert.True(t, os.IsNotExist(err))

	// report.txt itself must survive the removal pass it was written before.
	_, err = os.Stat(rep.ReportPath)
	assert.NoError(t, err)
}

func TestExtractOne_RemoveExtsLeavesMetadataDirUntouched(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	block := testutil.BuildNFO300([]testutil.NFO300Entry{
		{Name: "notes.txt", Checksum: 1, Data: []byte("keep")},
		{Name: "cache.log", Checksum: 2, Data: []byte("drop")},
	})
	installer := writeInstaller(t, root, "setup.exe", block)
	outDir := filepath.Join(root, "out")

	// A matching file inside the metadata directory must be skipped.
	metaLog := filepath.Join(outDir, ".instarch", "run.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(metaLog), 0o755))
	require.NoError(t, os.WriteFile(metaLog, []byte("audit"), 0o644))

	rep, err := ExtractOne(context.Background(), Request{
		InstallerPath: installer,
		OutDir:        outDir,
		RemoveExts:    []string{"log"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cache.log"}, rep.RemovedFiles)

	_, err = os.Stat(filepath.Join(outDir, "notes.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "cache.log"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(metaLog)
	assert.NoError(t, err)
}

func TestExtractAll_RunsEveryRequestAndPreservesOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blockA := testutil.BuildNFO300([]testutil.NFO300Entry{{Name: "a.txt", Checksum: 1, Data: []byte("alpha")}})
	blockB := testutil.BuildNFO300([]testutil.NFO300Entry{{Name: "b.txt", Checksum: 1, Data: []byte("beta")}})
	instA := writeInstaller(t, root, "one.exe", blockA)
	instB := writeInstaller(t, root, "two.exe", blockB)

	reqs := []Request{
		{InstallerPath: instA, OutDir: filepath.Join(root, "out-a")},
		{InstallerPath: instB, OutDir: filepath.Join(root, "out-b")},
	}

	reports, errs := ExtractAll(context.Background(), reqs, 2)
	require.Len(t, reports, 2)
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	assert.Equal(t, []string{"a.txt"}, reports[0].EntryNames)
	assert.Equal(t, []string{"b.txt"}, reports[1].EntryNames)
}

func TestExtractAll_EmptyRequestsReturnsNil(t *testing.T) {
	t.Parallel()

	reports, errs := ExtractAll(context.Background(), nil, 4)
	assert.Nil(t, reports)
	assert.Nil(t, errs)
}

func TestMatchesRemoval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     string
		prefixes []string
		exts     []string
		want     bool
	}{
		{"prefix match", "tmp_file.dat", []string{"tmp_"}, nil, true},
		{"prefix mismatch", "file.dat", []string{"tmp_"}, nil, false},
		{"ext match without dot", "cache.log", nil, []string{"log"}, true},
		{"ext match with dot", "cache.log", nil, []string{".log"}, true},
		{"ext is case-insensitive", "CACHE.LOG", nil, []string{"log"}, true},
		{"no filters never match", "anything.log", nil, nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, matchesRemoval(tc.file, tc.prefixes, tc.exts))
		})
	}
}

func TestStemOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Data1", stemOf("/a/b/Data1.cab"))
	assert.Equal(t, "archive", stemOf("archive.zip"))
	assert.Equal(t, "noext", stemOf("noext"))
}

func TestOrderedSplitParts_OrdersByNumberThenTrailingZip(t *testing.T) {
	t.Parallel()

	paths := []string{
		"/x/archive.z02",
		"/x/archive.zip",
		"/x/archive.z01",
	}

	ordered, err := orderedSplitParts(paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"/x/archive.z01", "/x/archive.z02", "/x/archive.zip"}, ordered)
}

func TestOrderedSplitParts_SingleZipWithNoNumberedParts(t *testing.T) {
	t.Parallel()

	ordered, err := orderedSplitParts([]string{"/x/solo.zip"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/x/solo.zip"}, ordered)
}

func TestOrderedSplitParts_AmbiguousStemsIsAnError(t *testing.T) {
	t.Parallel()

	_, err := orderedSplitParts([]string{"/x/one.z01", "/x/one.zip", "/x/two.z01", "/x/two.zip"})
	assert.Error(t, err)
}

func TestOrderedSplitParts_MissingTrailingZipIsAnError(t *testing.T) {
	t.Parallel()

	_, err := orderedSplitParts([]string{"/x/archive.z01", "/x/archive.z02"})
	assert.Error(t, err)
}

func TestFindDataCab_CaseInsensitiveMatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DATA1.CAB"), []byte("cab bytes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Data1.cab.d"), 0o755))

	found, err := findDataCab(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "DATA1.CAB"), found)
}

func TestFindDataCab_NoneFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.bin"), []byte("x"), 0o644))

	found, err := findDataCab(dir)
	require.NoError(t, err)
	assert.Empty(t, found)
}
