package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hintCmd = &cobra.Command{
	Use:   "hint <text>",
	Short: "Queue operator guidance for the next prompt",
	Long: `Queue a hint that will be injected into the next prompt built for the
worker. One-shot hints are dropped after a single injection; sticky hints
persist across every iteration until cleared.

Examples:
  loopd hint "prefer table-driven tests"
  loopd hint --sticky "never touch the vendored code"
  loopd hint clear`,
	Args: cobra.ExactArgs(1),
	RunE: runHintAdd,
}

var hintClearCmd = &cobra.Command{
	Use:   "clear [name]",
	Short: "Drop all queued hints, sticky included",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(args)
		if err != nil {
			return err
		}
		if err := sess.ClearHints(); err != nil {
			return err
		}
		fmt.Printf("hints cleared for loop %q\n", sess.Name)
		return nil
	},
}

func init() {
	hintCmd.Flags().Bool("sticky", false, "Re-inject the hint every iteration instead of once")
	hintCmd.Flags().String("loop", "", "Target loop name (defaults to the current loop)")
	hintCmd.AddCommand(hintClearCmd)
	rootCmd.AddCommand(hintCmd)
}

func runHintAdd(cmd *cobra.Command, args []string) error {
	var nameArgs []string
	if loop, _ := cmd.Flags().GetString("loop"); loop != "" {
		nameArgs = []string{loop}
	}
	sess, err := openSession(nameArgs)
	if err != nil {
		return err
	}

	sticky, _ := cmd.Flags().GetBool("sticky")
	warning, err := sess.AddHint(args[0], sticky)
	if err != nil {
		return err
	}
	if warning != "" {
		fmt.Println(styleBoldYellow + warning + colorReset)
	}
	kind := "hint"
	if sticky {
		kind = "sticky hint"
	}
	fmt.Printf("%s queued for loop %q\n", kind, sess.Name)
	return nil
}
