// Package unzipper safely expands a zip archive's entries onto disk,
// rejecting entry names that would escape the extraction directory.
package unzipper

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"instarch/pkg/safepath"
)

const (
	// zipMethodDeflate64 is the compression method identifier for
	// Deflate64 (Enhanced Deflate), which is not supported by Go's
	// archive/zip.
	zipMethodDeflate64 = 9

	// maxDecompressedSize is the maximum allowed size for a single
	// extracted file (100 GiB). This guards against zip-bomb attacks
	// where a small archive expands to enormous size, while still
	// allowing extraction of very large legitimate files.
	maxDecompressedSize = 100 << 30
)

var (
	// errArchiveEntryPathTraversal is returned when an archive entry
	// name contains path traversal components (e.g., "../") that would
	// escape the extraction directory.
	errArchiveEntryPathTraversal = errors.New("contains path traversal")

	// errArchiveEntryInvalidPath is returned when an archive entry name
	// is malformed: empty, contains NUL bytes, or has degenerate path
	// segments like "." or "".
	errArchiveEntryInvalidPath = errors.New("contains invalid entry path")

	// windowsVolumePrefixPattern matches Windows drive-volume prefixes
	// (e.g., "C:") at the start of a path string.
	windowsVolumePrefixPattern = regexp.MustCompile(`^[A-Za-z]:`)
)

// ExpandReaderAt extracts every entry of the zip archive held in ra (size
// bytes long) into outDir, validating every resolved path against
// validator when non-nil. It returns the absolute paths written, in
// archive order.
func ExpandReaderAt(ra io.ReaderAt, size int64, outDir string, validator *safepath.Validator) ([]string, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("unzipper: open zip reader: %w", err)
	}

	if err := validateCompressionMethods(zr.File); err != nil {
		return nil, err
	}

	var written []string

	for _, entry := range zr.File {
		targetPath, err := resolveArchiveEntryPath(outDir, entry.Name, validator)
		if err != nil {
			return nil, fmt.Errorf("unzipper: illegal entry path %q: %w", entry.Name, err)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, entry.Mode().Perm()|0o755); err != nil {
				return nil, fmt.Errorf("unzipper: create directory %s: %w", targetPath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return nil, fmt.Errorf("unzipper: create parent directory %s: %w", filepath.Dir(targetPath), err)
		}

		if err := extractFile(entry, targetPath); err != nil {
			return nil, fmt.Errorf("unzipper: extract %s: %w", entry.Name, err)
		}

		written = append(written, targetPath)
	}

	return written, nil
}

// normalizeArchiveEntryPath converts an archive entry name to a canonical
// forward-slash path by applying [filepath.ToSlash] and replacing any
// remaining literal backslash sequences with forward slashes.
func normalizeArchiveEntryPath(entryName string) string {
	return strings.ReplaceAll(filepath.ToSlash(entryName), `\\`, "/")
}

// hasWindowsVolumePrefix reports whether pathName starts with a Windows
// drive-volume prefix (e.g., "C:").
func hasWindowsVolumePrefix(pathName string) bool {
	return windowsVolumePrefixPattern.MatchString(pathName)
}

// validateArchiveEntryPath checks that entryName is a safe, relative file path
// suitable for extraction. It rejects absolute paths, traversal segments,
// Windows drive-volume prefixes, empty path elements, and NUL bytes.
// Returns [errArchiveEntryPathTraversal] for traversal-like entries and
// [errArchiveEntryInvalidPath] for malformed names.
func validateArchiveEntryPath(entryName string) error {
	normalized := normalizeArchiveEntryPath(entryName)
	if normalized == "" {
		return errArchiveEntryInvalidPath
	}

	if strings.HasPrefix(normalized, "/") || hasWindowsVolumePrefix(normalized) {
		return errArchiveEntryPathTraversal
	}

	if strings.ContainsRune(normalized, '\x00') {
		return errArchiveEntryInvalidPath
	}

	trimmed := strings.TrimRight(normalized, "/")
	if trimmed == "" {
		return errArchiveEntryInvalidPath
	}

	for _, part := range strings.Split(trimmed, "/") {
		switch part {
		case "..":
			return errArchiveEntryPathTraversal
		case "", ".":
			return errArchiveEntryInvalidPath
		}
	}

	cleanPath := path.Clean(trimmed)

	if cleanPath == "." || strings.HasPrefix(cleanPath, "/") || hasWindowsVolumePrefix(cleanPath) {
		return errArchiveEntryInvalidPath
	}

	if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") {
		return errArchiveEntryPathTraversal
	}

	return nil
}

// resolveArchiveEntryPath validates and resolves an archive entry name to a safe
// absolute filesystem path under baseDir. It first checks the entry name for path
// traversal attempts, then normalizes platform-specific separators and joins the
// result with baseDir. When a [safepath.Validator] is provided, the resolved path
// is additionally validated to ensure it remains within the allowed root directory.
func resolveArchiveEntryPath(
	baseDir string,
	entryName string,
	validator *safepath.Validator,
) (string, error) {
	if err := validateArchiveEntryPath(entryName); err != nil {
		return "", err
	}

	normalized := normalizeArchiveEntryPath(entryName)
	targetPath := filepath.Join(baseDir, filepath.FromSlash(normalized))

	if validator != nil {
		if err := validator.ValidatePathForWrite(targetPath); err != nil {
			return "", fmt.Errorf("%w: %w", errArchiveEntryPathTraversal, err)
		}
	}

	return targetPath, nil
}

// extractFile writes a single zip file entry to targetPath. It opens the
// compressed entry for reading, creates the destination file, and copies the
// content. The destination file receives the permission bits stored in the
// archive entry. Extraction is limited to [maxDecompressedSize] bytes to
// prevent decompression bombs.
func extractFile(entry *zip.File, targetPath string) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	outFile, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err = io.Copy(outFile, io.LimitReader(rc, maxDecompressedSize)); err != nil {
		_ = outFile.Close()
		return fmt.Errorf("failed to write file content: %w", err)
	}

	return outFile.Close()
}

// validateCompressionMethods checks that all non-directory entries in the archive
// use a supported compression method (Store or Deflate). It returns an error
// wrapping [zip.ErrAlgorithm] for the first entry that uses an unsupported method,
// or nil if all entries are compatible.
func validateCompressionMethods(entries []*zip.File) error {
	for _, entry := range entries {
		if entry.FileInfo().IsDir() {
			continue
		}

		if isCompressionMethodSupported(entry.Method) {
			continue
		}

		return fmt.Errorf(
			"entry %q uses unsupported compression method %d (%s): %w",
			entry.Name,
			entry.Method,
			compressionMethodName(entry.Method),
			zip.ErrAlgorithm,
		)
	}

	return nil
}

// isCompressionMethodSupported reports whether method is a zip compression
// algorithm that this package can extract. Currently only [zip.Store]
// (uncompressed) and [zip.Deflate] are supported.
func isCompressionMethodSupported(method uint16) bool {
	return method == zip.Store || method == zip.Deflate
}

// compressionMethodName returns a human-readable name for a zip compression
// method code. Known methods include "store" (0), "deflate" (8), and
// "deflate64" (9). Unrecognized method codes return "unknown".
func compressionMethodName(method uint16) string {
	switch method {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	case zipMethodDeflate64:
		return "deflate64"
	default:
		return "unknown"
	}
}
