package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var advanceCmd = &cobra.Command{
	Use:   "advance [name]",
	Short: "Report a finished worker iteration",
	Long: `Feed the worker's output for the iteration that just finished and run
the state machine once. The output is read from stdin and scanned for the
completion and abort markers; the next prompt (or a retry prompt, or a
pause notice) is printed.

Examples:
  worker-run | loopd advance
  loopd advance my-loop < output.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdvance,
}

func init() {
	rootCmd.AddCommand(advanceCmd)
}

func runAdvance(cmd *cobra.Command, args []string) error {
	sess, err := openSession(args)
	if err != nil {
		return err
	}

	output, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading worker output: %w", err)
	}

	out, err := sess.Advance(string(output))
	if err != nil {
		return err
	}
	printOutcome(out)
	return nil
}
