package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instarch/pkg/safepath"
)

func newValidator(t *testing.T, root string) *safepath.Validator {
	t.Helper()
	v, err := safepath.New(root)
	require.NoError(t, err)
	return v
}

func TestInit_CreatesMetadataDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v := newValidator(t, root)

	d, err := Init(root, v)
	require.NoError(t, err)

	expectedPath := filepath.Join(root, DirName)
	assert.Equal(t, expectedPath, d.Root(), "metadata root should be .instarch inside target")

	info, err := os.Stat(expectedPath)
	require.NoError(t, err, ".instarch directory should exist")
	assert.True(t, info.IsDir(), ".instarch should be a directory")
}

func TestInit_Idempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v := newValidator(t, root)

	d1, err := Init(root, v)
	require.NoError(t, err)

	d2, err := Init(root, v)
	require.NoError(t, err)

	assert.Equal(t, d1.Root(), d2.Root(), "repeated Init should return same root")
}

func TestDir_JournalPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v := newValidator(t, root)
	d, err := Init(root, v)
	require.NoError(t, err)

	runID := "extract-20260208T150000"
	expected := filepath.Join(root, DirName, "journal", runID+".jsonl")
	assert.Equal(t, expected, d.JournalPath(runID))
}

func TestDir_ReportPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v := newValidator(t, root)
	d, err := Init(root, v)
	require.NoError(t, err)

	runID := "extract-20260208T150000"
	expected := filepath.Join(root, DirName, "reports", runID+".txt")
	assert.Equal(t, expected, d.ReportPath(runID))
}

func TestDir_LockPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v := newValidator(t, root)
	d, err := Init(root, v)
	require.NoError(t, err)

	expected := filepath.Join(root, DirName, "lock")
	assert.Equal(t, expected, d.LockPath())
}

func TestDir_RunID_Format(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v := newValidator(t, root)
	d, err := Init(root, v)
	require.NoError(t, err)

	runID := d.RunID("extract")
	assert.True(t, strings.HasPrefix(runID, "extract-"), "run ID should start with command name")

	parts := strings.SplitN(runID, "-", 2)
	require.Len(t, parts, 2, "run ID should have command-timestamp format")

	_, parseErr := time.Parse("20060102T150405", parts[1])
	assert.NoError(t, parseErr, "timestamp portion should parse as YYYYMMDDTHHmmss")
}

func TestDir_RunID_UniquePerCommand(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	v := newValidator(t, root)
	d, err := Init(root, v)
	require.NoError(t, err)

	extractID := d.RunID("extract")
	patchID := d.RunID("patch-apply")

	assert.True(t, strings.HasPrefix(extractID, "extract-"), "extract run ID prefix")
	assert.True(t, strings.HasPrefix(patchID, "patch-apply-"), "patch-apply run ID prefix")
	assert.NotEqual(t, extractID, patchID, "different commands produce different IDs")
}

func TestDirName_Constant(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".instarch", DirName, "metadata directory name should be .instarch")
}
