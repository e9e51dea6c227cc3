package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"instarch/pkg/orchestrator"
)

func buildExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <installer> <out-dir>",
		Short: "Extract one installer into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			installer, err := validateAndResolvePath(args[0])
			if err != nil {
				return err
			}

			rep, err := runExtract(cmd.Context(), installer, args[1])
			if err != nil {
				return err
			}

			printCommandHeader("extract", installer)
			printSummary(
				fmt.Sprintf("Format: %s", rep.Kind),
				fmt.Sprintf("Entries: %d", len(rep.EntryNames)),
				fmt.Sprintf("Expanded: %d", len(rep.ExpandedFiles)),
				fmt.Sprintf("Removed: %d", len(rep.RemovedFiles)),
				fmt.Sprintf("Duration: %s", rep.Duration.Round(time.Millisecond)),
				fmt.Sprintf("Report: %s", rep.ReportPath),
			)

			return nil
		},
	}
}

// runExtract extracts installer into outDir under an advisory lock, logging
// the outcome to the output directory's audit journal.
func runExtract(ctx context.Context, installer, outDir string) (orchestrator.Report, error) {
	meta, lock, err := lockOutDir(outDir)
	if err != nil {
		return orchestrator.Report{}, err
	}
	defer lock.Close()

	start := time.Now()
	rep, extractErr := orchestrator.ExtractOne(ctx, orchestrator.Request{
		InstallerPath:  installer,
		OutDir:         outDir,
		RemovePrefixes: prefixFilter,
		RemoveExts:     extFilter,
	})

	if jw, jerr := newJournalWriter(meta, "extract"); jerr == nil {
		_ = jw.Log(journalEntryFor(installer, rep, extractErr, time.Since(start)))
		_ = jw.Close()
	}

	return rep, extractErr
}
