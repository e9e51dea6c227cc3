package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"instarch/pkg/orchestrator"
)

func buildExtractAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract-all <glob> <out-dir>",
		Short: "Extract every installer matched by a glob",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			installers, err := resolveGlob(args[0])
			if err != nil {
				return err
			}
			if len(installers) == 0 {
				fmt.Println("No installers matched the glob.")
				return nil
			}

			outDir := args[1]
			reqs := make([]orchestrator.Request, len(installers))
			for i, installer := range installers {
				reqs[i] = orchestrator.Request{
					InstallerPath:  installer,
					OutDir:         filepath.Join(outDir, stemOfPath(installer)),
					RemovePrefixes: prefixFilter,
					RemoveExts:     extFilter,
				}
			}

			printCommandHeader("extract-all", args[0])
			fmt.Printf("Matched %d installer(s)\n", len(reqs))

			progress := startProgress("Extracting")
			reports, errs := orchestrator.ExtractAll(cmd.Context(), reqs, workers)
			progress.Stop()

			var okCount, failCount int
			for i, rep := range reports {
				if errs[i] != nil {
					failCount++
					fmt.Printf("FAILED  %s: %v\n", reqs[i].InstallerPath, errs[i])
					continue
				}
				okCount++
				fmt.Printf("OK      %s -> %s (%s, %d entries, %d removed, %s)\n",
					reqs[i].InstallerPath, reqs[i].OutDir, rep.Kind, len(rep.EntryNames), len(rep.RemovedFiles), rep.Duration.Round(time.Millisecond))
			}

			printSummary(
				fmt.Sprintf("Succeeded: %d", okCount),
				fmt.Sprintf("Failed: %d", failCount),
			)

			if failCount > 0 {
				return fmt.Errorf("extract-all: %d of %d installers failed", failCount, len(reqs))
			}
			return nil
		},
	}
}

// stemOfPath returns path's base filename without its extension, used to
// derive a per-installer output subdirectory under extract-all's out-dir.
func stemOfPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
