package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildListAllArchivesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-all-archives <glob>",
		Short: "List the entries embedded in every installer matched by a glob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			installers, err := resolveGlob(args[0])
			if err != nil {
				return err
			}
			if len(installers) == 0 {
				fmt.Println("No installers matched the glob.")
				return nil
			}

			printCommandHeader("list-all-archives", args[0])
			fmt.Printf("Matched %d installer(s)\n\n", len(installers))

			var failCount int
			for _, installer := range installers {
				fmt.Printf("--- %s ---\n", installer)
				if err := listArchive(installer); err != nil {
					failCount++
					fmt.Printf("FAILED  %s: %v\n", installer, err)
				}
				fmt.Println()
			}

			if failCount > 0 {
				return fmt.Errorf("list-all-archives: %d of %d installers failed", failCount, len(installers))
			}
			return nil
		},
	}
}
