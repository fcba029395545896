package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/loopd/internal/history"
)

var logCmd = &cobra.Command{
	Use:   "log [name]",
	Short: "Show the tail of a loop's iteration log",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().Int("bytes", 8192, "How much of the log tail to print")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	s, err := openStoreRequired()
	if err != nil {
		return err
	}
	name, err := resolveLoop(s, args)
	if err != nil {
		return err
	}

	maxBytes, _ := cmd.Flags().GetInt("bytes")
	tail, err := history.New(s.HistoryDir()).LogTail(name, maxBytes)
	if err != nil {
		return err
	}
	if tail == "" {
		fmt.Printf("no log recorded for loop %q yet\n", name)
		return nil
	}
	printHeader("Log: " + name)
	fmt.Println(tail)
	return nil
}
