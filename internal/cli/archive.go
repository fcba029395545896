package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/loopd/internal/store"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <name>",
	Short: "Move a loop's state into the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStoreRequired()
		if err != nil {
			return err
		}
		name := store.SanitizeName(args[0])
		if err := s.Archive(name); err != nil {
			return err
		}
		if s.Current() == name {
			if err := s.ClearCurrent(); err != nil {
				return err
			}
		}
		fmt.Printf("loop %q archived\n", name)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a loop's state file permanently",
	Long: `Delete a loop's state file. History and log files for the name are
kept; archive the loop instead if you may want its state back.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("yes")
		if !confirm {
			return fmt.Errorf("deletion is permanent; re-run with --yes to confirm")
		}
		s, err := openStoreRequired()
		if err != nil {
			return err
		}
		name := store.SanitizeName(args[0])
		if err := s.Delete(name); err != nil {
			return err
		}
		if s.Current() == name {
			if err := s.ClearCurrent(); err != nil {
				return err
			}
		}
		fmt.Printf("loop %q deleted\n", name)
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <name>",
	Short: "Force-release a stale loop lock",
	Long: `Release the in-process lock on a loop. Refuses unless the lock is
older than the staleness TTL and --yes is given; a healthy lock means an
operation is still running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStoreRequired()
		if err != nil {
			return err
		}
		confirm, _ := cmd.Flags().GetBool("yes")
		name := store.SanitizeName(args[0])
		if err := s.ForceUnlock(name, confirm); err != nil {
			return err
		}
		fmt.Printf("lock on loop %q released\n", name)
		return nil
	},
}

func init() {
	deleteCmd.Flags().Bool("yes", false, "Confirm permanent deletion")
	unlockCmd.Flags().Bool("yes", false, "Confirm the force release")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(unlockCmd)
}
