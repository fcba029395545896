// Package cli wires the loopd commands together.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agusx1211/loopd/internal/buildinfo"
	"github.com/agusx1211/loopd/internal/debug"
)

const (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"

	// Combined styles
	styleBoldCyan   = "\033[1;36m"
	styleBoldGreen  = "\033[1;32m"
	styleBoldYellow = "\033[1;33m"
	styleBoldWhite  = "\033[1;37m"
)

var rootCmd = &cobra.Command{
	Use:   "loopd",
	Short: "Iteration driver for long-running agent work",
	Long: colorBold + `
  _                         _
 | | ___   ___  _ __   __| |
 | |/ _ \ / _ \| '_ \ / _` + "`" + ` |
 | | (_) | (_) | |_) | (_| |
 |_|\___/ \___/| .__/ \__,_|
               |_|` + colorReset + `

  ` + styleBoldCyan + `loopd` + colorReset + ` v` + buildinfo.Current().Version + `

  Drives a long-running AI worker through a task document, iteration by
  iteration: it persists loop state across restarts, demands structured
  checkpoints, detects stalls, and stops on strict completion markers.

` + colorBold + `Getting Started:` + colorReset + `
  loopd start my-loop TASK.md       Start a loop over a task document
  loopd advance < worker-output     Report a finished iteration
  loopd status                      Show the current loop
  loopd hint "focus on tests"       Queue guidance for the next prompt

` + colorBold + `More Info:` + colorReset + `
  https://github.com/agusx1211/loopd`,

	RunE: func(cmd *cobra.Command, args []string) error {
		s := openStore()
		if !s.Exists() {
			fmt.Println(styleBoldYellow + "No loopd state in this directory." + colorReset)
			fmt.Println("Run " + styleBoldWhite + "loopd start <name> <task-file>" + colorReset + " to begin a loop.")
			return nil
		}
		return runStatus(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.loopd/debug/")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "loopd starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"build_date", bi.BuildDate,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
