package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/loopd/internal/history"
	"github.com/agusx1211/loopd/internal/statusview"
)

var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show a loop's state, progress, and health",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List loops",
	RunE:    runList,
}

func init() {
	listCmd.Flags().Bool("archived", false, "List archived loops instead")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openStoreRequired()
	if err != nil {
		return err
	}
	name, err := resolveLoop(s, args)
	if err != nil {
		return err
	}
	st, err := s.Load(name)
	if err != nil {
		return err
	}

	recs, err := history.New(s.HistoryDir()).History(name)
	if err != nil {
		recs = nil
	}

	fmt.Println(statusview.Render(st, recs, stdoutIsTTY()))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openStoreRequired()
	if err != nil {
		return err
	}
	archived, _ := cmd.Flags().GetBool("archived")
	loops, err := s.List(archived)
	if err != nil {
		return err
	}
	fmt.Println(statusview.RenderList(loops, stdoutIsTTY()))
	return nil
}
