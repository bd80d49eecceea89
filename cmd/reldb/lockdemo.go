package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relcore-dev/reldb/internal/common"
	"github.com/relcore-dev/reldb/internal/lock"
)

var lockDemoCmd = &cobra.Command{
	Use:   "lock-demo",
	Short: "Run the wound-wait preemption scenario and print the resulting transaction states",
	RunE:  runLockDemo,
}

func init() {
	rootCmd.AddCommand(lockDemoCmd)
}

// runLockDemo walks through the wound-wait scenario this module's lock
// manager is built around: a younger transaction holds an exclusive
// lock, an older one requests it, and wound-wait aborts the younger
// transaction rather than making the older one wait.
func runLockDemo(cmd *cobra.Command, args []string) error {
	lm := lock.NewLockManager(nil)
	row := common.RowID{PageID: 1, Slot: 0}
	isolation := isolationFromConfig(cfg.DefaultIsolation)

	younger := lock.NewTransaction(10, isolation)
	older := lock.NewTransaction(5, isolation)

	if err := lm.LockExclusive(younger, row); err != nil {
		return fmt.Errorf("reldb lock-demo: %w", err)
	}
	fmt.Printf("txn %d acquired exclusive lock on %s, state=%s\n", younger.ID(), row, younger.State())

	if err := lm.LockExclusive(older, row); err != nil {
		return fmt.Errorf("reldb lock-demo: %w", err)
	}
	fmt.Printf("txn %d (older) requested the same lock: wounded txn %d, state now %s\n",
		older.ID(), younger.ID(), younger.State())
	fmt.Printf("txn %d granted, state=%s\n", older.ID(), older.State())

	lm.ReleaseAll(older)
	fmt.Printf("lock manager stats after demo: %+v\n", lm.Stats())
	return nil
}

// isolationFromConfig maps the config's default_isolation string onto a
// lock.IsolationLevel, falling back to REPEATABLE_READ for anything
// unrecognized.
func isolationFromConfig(s string) lock.IsolationLevel {
	switch s {
	case "READ_UNCOMMITTED":
		return lock.ReadUncommitted
	case "READ_COMMITTED":
		return lock.ReadCommitted
	default:
		return lock.RepeatableRead
	}
}
