package main

import (
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore every *.sql file in RESTORE_PATH once",
	Long: `Run a single restore pass. For each <name>.sql file in RESTORE_PATH the
database <name> is created (an existing one is reused) and the file is
replayed into it with psql. INTERVAL is ignored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPasses(true)
	},
}
