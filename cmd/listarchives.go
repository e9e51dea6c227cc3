package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"instarch/pkg/setup"
)

func buildListArchivesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-archives <installer>",
		Short: "List the entries embedded in one installer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			installer, err := validateAndResolvePath(args[0])
			if err != nil {
				return err
			}

			printCommandHeader("list-archives", installer)
			return listArchive(installer)
		},
	}
}

// listArchive opens installer, detects its setup format, and prints its
// entry table with decimal-formatted sizes and a total/percentage line.
func listArchive(installer string) error {
	f, err := os.Open(installer)
	if err != nil {
		return fmt.Errorf("open %s: %w", installer, err)
	}
	defer f.Close()

	su, err := setup.Detect(f)
	if err != nil {
		return fmt.Errorf("detect setup format in %s: %w", installer, err)
	}

	entries, err := su.Entries()
	if err != nil {
		return fmt.Errorf("list entries in %s: %w", installer, err)
	}

	var total int64
	for _, e := range entries {
		total += e.Size
	}

	for _, e := range entries {
		pct := 0.0
		if total > 0 {
			pct = float64(e.Size) / float64(total) * 100
		}
		fmt.Printf("%-40s %12s (%5.1f%%)\n", e.Name, formatBytes(e.Size), pct)
	}

	printSummary(
		fmt.Sprintf("Entries: %d", len(entries)),
		fmt.Sprintf("Total size: %s", formatBytes(total)),
		fmt.Sprintf("Installer size: %s", formatBytes(su.Size())),
	)

	return nil
}
