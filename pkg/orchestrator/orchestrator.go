// Package orchestrator drives the end-to-end expansion of one or many
// legacy installers: detect the setup table, extract its embedded entries,
// classify what came out, and hand zip-split/cab/msi payloads to the
// package that knows how to finish unpacking them.
package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"instarch/pkg/cow"
	"instarch/pkg/externaltool"
	"instarch/pkg/metadata"
	"instarch/pkg/payloadkind"
	"instarch/pkg/report"
	"instarch/pkg/safepath"
	"instarch/pkg/setup"
	"instarch/pkg/splitfile"
	"instarch/pkg/unzipper"
	"instarch/pkg/zipsplit"
)

// Request describes one installer to expand.
type Request struct {
	// InstallerPath is the self-extracting installer file to read.
	InstallerPath string
	// OutDir is the directory the installer's contents are written to. It
	// is created if it does not exist.
	OutDir string
	// RemovePrefixes lists leaf-name prefixes. After expansion, any output
	// file whose base name starts with one of these is deleted.
	RemovePrefixes []string
	// RemoveExts lists extensions (with or without a leading dot). After
	// expansion, any output file with a matching extension is deleted.
	RemoveExts []string
}

// Report summarizes the outcome of expanding one installer.
type Report struct {
	InstallerPath string
	Kind          payloadkind.Kind
	EntryNames    []string
	ExpandedFiles []string
	RemovedFiles  []string
	Duration      time.Duration
	ReportPath    string
}

// ExtractOne detects req.InstallerPath's setup format, writes its embedded
// entries into req.OutDir, classifies what came out, and — for recognized
// archive families — finishes unpacking them in place. A report.txt
// inventory of the OutDir tree is written after expansion and before the
// RemovePrefixes/RemoveExts removal pass, so it also lists files that pass
// deletes.
func ExtractOne(ctx context.Context, req Request) (Report, error) {
	start := time.Now()

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("orchestrator: create out dir %s: %w", req.OutDir, err)
	}

	validator, err := safepath.New(req.OutDir)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: validate out dir %s: %w", req.OutDir, err)
	}

	f, err := os.Open(req.InstallerPath)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: open installer %s: %w", req.InstallerPath, err)
	}
	defer f.Close()

	su, err := setup.Detect(f)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: detect setup format: %w", err)
	}

	entries, err := su.Entries()
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: list entries: %w", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	extracted, err := su.ExtractTo(req.OutDir)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: extract entries: %w", err)
	}

	kind := payloadkind.Classify(extracted)

	var expanded []string
	switch kind {
	case payloadkind.KindZipSplit:
		expanded, err = expandZipSplit(extracted, req.OutDir, validator)
	case payloadkind.KindCab, payloadkind.KindMSI:
		expanded, err = expandExternal(ctx, extracted, req.OutDir)
	}
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: expand %s payload: %w", kind, err)
	}

	reportPath := filepath.Join(req.OutDir, "report.txt")
	if err := report.WriteFile(req.OutDir, reportPath); err != nil {
		return Report{}, fmt.Errorf("orchestrator: write report: %w", err)
	}

	removed, err := removeMatching(req.OutDir, reportPath, req.RemovePrefixes, req.RemoveExts, validator)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: remove filtered entries: %w", err)
	}

	return Report{
		InstallerPath: req.InstallerPath,
		Kind:          kind,
		EntryNames:    names,
		ExpandedFiles: expanded,
		RemovedFiles:  removed,
		Duration:      time.Since(start),
		ReportPath:    reportPath,
	}, nil
}

// removeMatching walks outDir after report.txt has been written and deletes
// every regular file whose leaf name starts with one of prefixes, or whose
// extension matches one of exts, leaving report.txt itself and the audit
// metadata directory untouched. It reports the paths it removed, relative to
// outDir.
func removeMatching(outDir, reportPath string, prefixes, exts []string, validator *safepath.Validator) ([]string, error) {
	if len(prefixes) == 0 && len(exts) == 0 {
		return nil, nil
	}

	var removed []string

	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == metadata.DirName {
				return filepath.SkipDir
			}
			return nil
		}
		if path == reportPath {
			return nil
		}
		if !matchesRemoval(d.Name(), prefixes, exts) {
			return nil
		}

		if err := validator.SafeRemove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}

		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			rel = path
		}
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

// matchesRemoval reports whether name should be removed under the given
// prefix and extension removal lists.
func matchesRemoval(name string, prefixes, exts []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(filepath.Ext(name), e) {
			return true
		}
	}
	return false
}

// ExtractAll runs ExtractOne over reqs using a bounded pool of workers,
// mirroring the fan-out-then-collect shape a concurrent batch hasher would
// use: one goroutine per worker slot, a channel of requests, and a
// WaitGroup gating collection of per-request results in input order.
func ExtractAll(ctx context.Context, reqs []Request, workers int) ([]Report, []error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}
	if workers == 0 {
		return nil, nil
	}

	reports := make([]Report, len(reqs))
	errs := make([]error, len(reqs))

	type job struct {
		index int
		req   Request
	}

	jobs := make(chan job)
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				reports[j.index], errs[j.index] = ExtractOne(ctx, j.req)
			}
		}()
	}

	for i, req := range reqs {
		jobs <- job{index: i, req: req}
	}
	close(jobs)

	wg.Wait()

	return reports, errs
}

// expandExternal hands every cab/msi file among extracted to a 7z-compatible
// external tool, expanding each into outDir/<stem>_expanded, where <stem> is
// the archive's name minus its extension. MSI packages get a second pass: their
// embedded Data1.cab, once exposed by the first expansion, is itself
// expanded via the same external tool.
func expandExternal(ctx context.Context, extracted []string, outDir string) ([]string, error) {
	var expandedDirs []string

	for _, path := range extracted {
		kind := payloadkind.Classify([]string{path})

		switch kind {
		case payloadkind.KindCab:
			dest := filepath.Join(outDir, stemOf(path)+"_expanded")
			if err := externaltool.Extract(ctx, path, dest); err != nil {
				return nil, fmt.Errorf("expand %s: %w", path, err)
			}
			expandedDirs = append(expandedDirs, dest)

		case payloadkind.KindMSI:
			dirs, err := expandMSI(ctx, path, outDir)
			if err != nil {
				return nil, err
			}
			expandedDirs = append(expandedDirs, dirs...)
		}
	}

	return expandedDirs, nil
}

// expandMSI expands an MSI package into outDir/<stem>_expanded and then, if
// the expansion exposed a Data1.cab (the MSI's embedded file table), recurses
// into that cabinet via the same external tool. An MSI with no Data1.cab
// among its expanded contents is left as a single-stage expansion.
func expandMSI(ctx context.Context, path, outDir string) ([]string, error) {
	dest := filepath.Join(outDir, stemOf(path)+"_expanded")
	if err := externaltool.Extract(ctx, path, dest); err != nil {
		return nil, fmt.Errorf("expand %s: %w", path, err)
	}
	dirs := []string{dest}

	cabPath, err := findDataCab(dest)
	if err != nil {
		return nil, fmt.Errorf("locate Data1.cab in %s: %w", dest, err)
	}
	if cabPath == "" {
		return dirs, nil
	}

	cabDest := filepath.Join(dest, stemOf(cabPath)+"_expanded")
	if err := externaltool.Extract(ctx, cabPath, cabDest); err != nil {
		return nil, fmt.Errorf("expand %s: %w", cabPath, err)
	}

	return append(dirs, cabDest), nil
}

// findDataCab returns the path to dir's Data1.cab file, matched
// case-insensitively, or "" if dir has none.
func findDataCab(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(e.Name(), "Data1.cab") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", nil
}

// expandZipSplit joins the concatenated split parts among extracted into a
// single logical stream, repairs its central-directory offsets through a
// copy-on-write overlay, and expands the resulting archive into outDir.
func expandZipSplit(extracted []string, outDir string, validator *safepath.Validator) ([]string, error) {
	parts, err := orderedSplitParts(extracted)
	if err != nil {
		return nil, err
	}

	opener := pathOpener(parts)
	joined, err := splitfile.New(opener)
	if err != nil {
		return nil, fmt.Errorf("join split parts: %w", err)
	}
	defer joined.Close()

	overlay := cow.New(joined, joined.Size(), cow.DefaultPageSize)

	splits := make([]zipsplit.Range, len(joined.Splits()))
	for i, r := range joined.Splits() {
		splits[i] = zipsplit.Range{Start: r.Start, End: r.End}
	}

	if err := zipsplit.FixOffsets(overlay, splits); err != nil {
		return nil, fmt.Errorf("repair split offsets: %w", err)
	}

	return unzipper.ExpandReaderAt(overlay, overlay.Len(), outDir, validator)
}

// pathOpener adapts an ordered list of file paths to splitfile.Opener.
type pathOpener []string

func (p pathOpener) NumSplits() int { return len(p) }

func (p pathOpener) OpenSplit(index int) (splitfile.File, error) {
	return os.Open(p[index])
}

// splitPartPattern matches a split-archive filename stem and its zNN suffix.
var splitPartPattern = regexp.MustCompile(`(?i)^(.*)\.z(\d+)$`)

// orderedSplitParts groups files by stem and returns the matching stem's
// parts ordered z0, z1, ..., then the trailing .zip, erroring if more than
// one stem's worth of split parts is present (ambiguous grouping) or if no
// trailing .zip is found.
func orderedSplitParts(paths []string) ([]string, error) {
	type numbered struct {
		n    int
		path string
	}

	stems := make(map[string][]numbered)
	zips := make(map[string]string)

	for _, p := range paths {
		base := filepath.Base(p)
		if m := splitPartPattern.FindStringSubmatch(base); m != nil {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			stems[m[1]] = append(stems[m[1]], numbered{n: n, path: p})
			continue
		}
		if ext := filepath.Ext(base); ext == ".zip" {
			zips[base[:len(base)-len(ext)]] = p
		}
	}

	var stem string
	switch len(stems) {
	case 0:
		// No numbered parts; fall back to whichever single .zip was found.
		for _, p := range zips {
			return []string{p}, nil
		}
		return nil, fmt.Errorf("orchestrator: no zip-split parts found among extracted entries")
	case 1:
		for s := range stems {
			stem = s
		}
	default:
		return nil, fmt.Errorf("orchestrator: ambiguous zip-split groups among extracted entries")
	}

	parts := stems[stem]
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	ordered := make([]string, 0, len(parts)+1)
	for _, np := range parts {
		ordered = append(ordered, np.path)
	}

	zipPath, ok := zips[stem]
	if !ok {
		return nil, fmt.Errorf("orchestrator: split parts for %q have no trailing .zip", stem)
	}
	ordered = append(ordered, zipPath)

	return ordered, nil
}

// stemOf returns path's base filename without its extension.
func stemOf(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
