package main

import "os"

func main() {
	rootCmd := buildRootCommand()
	rootCmd.AddCommand(buildExtractCommand())
	rootCmd.AddCommand(buildExtractAllCommand())
	rootCmd.AddCommand(buildListArchivesCommand())
	rootCmd.AddCommand(buildListAllArchivesCommand())
	rootCmd.AddCommand(buildListPatcherCommand())
	rootCmd.AddCommand(buildListAllPatchersCommand())
	rootCmd.AddCommand(buildApplyPatchCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
