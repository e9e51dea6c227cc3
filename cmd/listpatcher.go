package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"instarch/pkg/wzpatch"
)

func buildListPatcherCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-patcher <patchfile>",
		Short: "Inspect a WzPatch file's add/modify/remove records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patchPath, err := validateAndResolvePath(args[0])
			if err != nil {
				return err
			}

			printCommandHeader("list-patcher", patchPath)
			return inspectPatch(patchPath)
		},
	}
}

// inspectPatch opens path as a WzPatch file, verifies its checksum, runs an
// Inspector over its record stream, and prints a summary.
func inspectPatch(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	p, err := wzpatch.Open(f)
	if err != nil {
		return fmt.Errorf("open patch %s: %w", path, err)
	}

	if err := p.VerifyChecksum(); err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}

	ins := wzpatch.NewInspector()
	if err := p.Process(ins); err != nil {
		return fmt.Errorf("process %s: %w", path, err)
	}
	info := ins.Info()

	for _, added := range info.Added {
		fmt.Printf("ADD     %-40s %s\n", added.Path, formatBytes(int64(added.Size)))
	}
	for _, modified := range info.Modified {
		fmt.Printf("MODIFY  %-40s %s touched\n", modified.Path, formatBytes(int64(modified.Bytes)))
	}
	for _, removed := range info.Removed {
		fmt.Printf("REMOVE  %s\n", removed)
	}

	printSummary(
		fmt.Sprintf("Version: %d", p.Version()),
		fmt.Sprintf("Added: %d", len(info.Added)),
		fmt.Sprintf("Modified: %d", len(info.Modified)),
		fmt.Sprintf("Removed: %d", len(info.Removed)),
	)

	return nil
}
