package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose      bool
	workers      int
	prefixFilter []string
	extFilter    []string
)

func buildRootCommand() *cobra.Command {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cmd := &cobra.Command{
		Use:     "instarch",
		Version: version,
		Short:   "Extract legacy NFO300/InstallShield installers and apply WzPatch patches",
		Long: `instarch locates and streams the payload out of two families of legacy
Windows self-extracting installers (NFO300, InstallShield) and
applies or inspects WzPatch differential patches. It never writes
installers or patches, only reads and extracts/applies them.

Commands:
  extract            Extracts one installer into a directory
  extract-all        Extracts every installer matched by a glob
  list-archives      Lists the entries embedded in one installer
  list-all-archives  Lists the entries embedded in every installer matched by a glob
  list-patcher       Inspects a WzPatch file's add/modify/remove records
  list-all-patchers  Inspects every WzPatch file matched by a glob
  apply-patch        Applies a WzPatch file against an old directory

Examples:
  instarch extract setup.exe ./out
  instarch extract-all "patch/*.exe" ./out --workers 4
  instarch list-archives setup.exe
  instarch list-patcher game.wzp
  instarch apply-patch game.wzp ./old ./new

Safety:
  Every extraction writes a plain-text report.txt inventory under its
  output directory. The extract command also keeps a .instarch/ audit
  journal there and holds an advisory lock on that directory so two
  concurrent extract runs cannot race; extract-all does neither.

Compression:
  ZIP methods store (0) and deflate (8) are supported.
  Cabinet and MSI payloads are expanded via an external 7z-compatible
  tool; this module never implements cabinet/MSI decompression itself.

  Apart from apply-patch, which deletes the files a patch removes from
  <old-dir>, the tool never modifies files outside the specified output
  directory.`,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().IntVar(&workers, "workers", cfg.Workers, "Number of parallel workers for *-all commands")
	cmd.PersistentFlags().StringArrayVar(&prefixFilter, "prefix", cfg.Prefix, "After expansion, delete output files whose name starts with this prefix (repeatable)")
	cmd.PersistentFlags().StringArrayVar(&extFilter, "ext", cfg.Ext, "After expansion, delete output files with this extension (repeatable)")

	return cmd
}
