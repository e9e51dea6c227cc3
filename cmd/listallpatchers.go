package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildListAllPatchersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-all-patchers <glob>",
		Short: "Inspect every WzPatch file matched by a glob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patches, err := resolveGlob(args[0])
			if err != nil {
				return err
			}
			if len(patches) == 0 {
				fmt.Println("No patch files matched the glob.")
				return nil
			}

			printCommandHeader("list-all-patchers", args[0])
			fmt.Printf("Matched %d patch file(s)\n\n", len(patches))

			var failCount int
			for _, patchPath := range patches {
				fmt.Printf("--- %s ---\n", patchPath)
				if err := inspectPatch(patchPath); err != nil {
					failCount++
					fmt.Printf("FAILED  %s: %v\n", patchPath, err)
				}
				fmt.Println()
			}

			if failCount > 0 {
				return fmt.Errorf("list-all-patchers: %d of %d patch files failed", failCount, len(patches))
			}
			return nil
		},
	}
}
