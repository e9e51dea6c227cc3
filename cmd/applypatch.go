package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"instarch/pkg/wzpatch"
)

func buildApplyPatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-patch <patchfile> <old-dir> <new-dir>",
		Short: "Apply a WzPatch file against an old directory, writing the result to a new directory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			patchPath, err := validateAndResolvePath(args[0])
			if err != nil {
				return err
			}
			oldDir, err := validateAndResolvePath(args[1])
			if err != nil {
				return err
			}
			newDir := args[2]

			printCommandHeader("apply-patch", patchPath)
			info, err := applyPatch(patchPath, oldDir, newDir)
			if err != nil {
				return err
			}

			printSummary(
				fmt.Sprintf("Added: %d", len(info.Added)),
				fmt.Sprintf("Modified: %d", len(info.Modified)),
				fmt.Sprintf("Removed: %d", len(info.Removed)),
			)

			return nil
		},
	}
}

// applyPatch opens path as a WzPatch file, verifies its checksum, and
// replays its records through an Applier that reads old files from oldDir
// and writes the reconstructed files under newDir. It returns an Inspector
// summary of what the patch did, gathered from the same record stream the
// Applier just wrote to disk.
func applyPatch(path, oldDir, newDir string) (wzpatch.PatcherInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	p, err := wzpatch.Open(f)
	if err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("open patch %s: %w", path, err)
	}

	if err := p.VerifyChecksum(); err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("verify %s: %w", path, err)
	}

	applier, err := wzpatch.NewApplier(oldDir, newDir)
	if err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("create applier: %w", err)
	}

	if err := p.Process(applier); err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("apply %s: %w", path, err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("rewind %s: %w", path, err)
	}
	p, err = wzpatch.Open(f)
	if err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("reopen patch %s: %w", path, err)
	}
	ins := wzpatch.NewInspector()
	if err := p.Process(ins); err != nil {
		return wzpatch.PatcherInfo{}, fmt.Errorf("summarize %s: %w", path, err)
	}

	return ins.Info(), nil
}
