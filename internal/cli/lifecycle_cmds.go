package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop [name]",
	Short: "Pause a loop at the iteration boundary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(args)
		if err != nil {
			return err
		}
		out, err := sess.Stop()
		if err != nil {
			return err
		}
		printOutcome(out)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [name]",
	Short: "Reactivate a paused loop and reprint its prompt",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(args)
		if err != nil {
			return err
		}
		out, err := sess.Resume()
		if err != nil {
			return err
		}
		printOutcome(out)
		return nil
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode <build|plan> [name]",
	Short: "Switch between build and plan prompting",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(args[1:])
		if err != nil {
			return err
		}
		if err := sess.SetMode(args[0]); err != nil {
			return err
		}
		fmt.Printf("loop %q mode set to %s\n", sess.Name, args[0])
		return nil
	},
}

var rotateCmd = &cobra.Command{
	Use:   "rotate [name]",
	Short: "Record a worker session rotation",
	Long: `Record that the worker's conversational context is being discarded.
The task document is snapshotted first so the next checkpoint validation
compares against the pre-rotation state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(args)
		if err != nil {
			return err
		}
		if err := sess.Rotate(); err != nil {
			return err
		}
		fmt.Printf("loop %q session rotation recorded\n", sess.Name)
		return nil
	},
}

var compactedCmd = &cobra.Command{
	Use:    "compacted [name]",
	Short:  "Record a context compaction notification",
	Hidden: true,
	Args:   cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(args)
		if err != nil {
			return err
		}
		if err := sess.Compacted(); err != nil {
			return err
		}
		fmt.Printf("loop %q compaction recorded\n", sess.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(rotateCmd)
	rootCmd.AddCommand(compactedCmd)
}
