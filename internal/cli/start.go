package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/loopd/internal/config"
	"github.com/agusx1211/loopd/internal/controller"
	"github.com/agusx1211/loopd/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start <name> <task-file>",
	Short: "Start (or restart) a loop over a task document",
	Long: `Start a named loop over a Markdown task document and print the first
prompt for the worker.

The task document should carry a "## Goals" section and a "## Checklist"
of "- [ ]" items. Flags omitted here fall back to ~/.loopd/config.yaml,
then to built-in defaults.

Examples:
  loopd start migration TASK.md
  loopd start migration TASK.md --max-iterations 40 --reflect-every 5
  loopd start sketch PLAN.md --mode plan`,
	Args: cobra.ExactArgs(2),
	RunE: runStart,
}

func init() {
	startCmd.Flags().Int("max-iterations", -1, "Stop after this many iterations (0 = unlimited)")
	startCmd.Flags().Int("items", -1, "Checklist items to target per iteration")
	startCmd.Flags().Int("reflect-every", -1, "Demand a checkpoint every N iterations (0 = never)")
	startCmd.Flags().String("reflect-instructions", "", "Extra guidance appended to checkpoint prompts")
	startCmd.Flags().String("mode", "", "Prompting mode: build or plan")
	startCmd.Flags().String("template", "", "Path to a prompt template override")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := controller.StartOptions{
		MaxIterations:       cfg.MaxIterations,
		ItemsPerIteration:   cfg.ItemsPerIteration,
		ReflectEvery:        cfg.ReflectEvery,
		ReflectInstructions: cfg.ReflectInstructions,
		Mode:                cfg.Mode,
	}
	if v, _ := cmd.Flags().GetInt("max-iterations"); v >= 0 {
		opts.MaxIterations = v
	}
	if v, _ := cmd.Flags().GetInt("items"); v >= 0 {
		opts.ItemsPerIteration = v
	}
	if v, _ := cmd.Flags().GetInt("reflect-every"); v >= 0 {
		opts.ReflectEvery = v
	}
	if v, _ := cmd.Flags().GetString("reflect-instructions"); v != "" {
		opts.ReflectInstructions = v
	}
	if v, _ := cmd.Flags().GetString("mode"); v != "" {
		opts.Mode = v
	}
	if opts.Mode != store.ModeBuild && opts.Mode != store.ModePlan {
		return fmt.Errorf("unknown mode %q (want %q or %q)", opts.Mode, store.ModeBuild, store.ModePlan)
	}
	opts.PromptTemplate = cfg.TemplateFor(opts.Mode)
	if v, _ := cmd.Flags().GetString("template"); v != "" {
		opts.PromptTemplate = v
	}

	name := store.SanitizeName(args[0])
	sess := controller.NewSession(openStore(), name)
	out, err := sess.Start(args[1], opts)
	if err != nil {
		return err
	}
	printOutcome(out)
	return nil
}
