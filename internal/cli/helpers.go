package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/agusx1211/loopd/internal/controller"
	"github.com/agusx1211/loopd/internal/store"
)

// openStore creates a Store for the current directory.
func openStore() *store.Store {
	if projectDir := strings.TrimSpace(os.Getenv("LOOPD_PROJECT_DIR")); projectDir != "" {
		return store.New(projectDir)
	}
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return store.New(dir)
}

// openStoreRequired creates a Store and checks that loop state exists.
func openStoreRequired() (*store.Store, error) {
	s := openStore()
	if !s.Exists() {
		return nil, fmt.Errorf("no loopd state found (run 'loopd start' first)")
	}
	return s, nil
}

// resolveLoop returns the loop name from args, falling back to the current
// loop pointer.
func resolveLoop(s *store.Store, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return store.SanitizeName(args[0]), nil
	}
	if cur := s.Current(); cur != "" {
		return cur, nil
	}
	return "", fmt.Errorf("no current loop; pass a loop name")
}

// openSession resolves the loop name and binds a controller session to it.
func openSession(args []string) (*controller.Session, error) {
	s, err := openStoreRequired()
	if err != nil {
		return nil, err
	}
	name, err := resolveLoop(s, args)
	if err != nil {
		return nil, err
	}
	return controller.NewSession(s, name), nil
}

// stdoutIsTTY reports whether styled output should be used.
func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printHeader prints a formatted section header.
func printHeader(title string) {
	fmt.Printf("\n%s%s%s\n", styleBoldCyan, title, colorReset)
	fmt.Println(colorDim + strings.Repeat("-", len(title)+2) + colorReset)
}

// printField prints a labeled field.
func printField(label, value string) {
	fmt.Printf("  %s%-16s%s %s\n", colorBold, label+":", colorReset, value)
}

// printOutcome renders a controller outcome: the message, any checkpoint
// reasons, and the prompt (stdout is the delivery channel to the host).
func printOutcome(out controller.Outcome) {
	switch out.Action {
	case controller.ActionComplete:
		fmt.Println(styleBoldGreen + out.Message + colorReset)
	case controller.ActionPause:
		fmt.Println(styleBoldYellow + out.Message + colorReset)
	default:
		fmt.Println(out.Message)
	}
	for _, r := range out.Reasons {
		fmt.Println(colorYellow + "  - " + r + colorReset)
	}
	if out.Prompt != "" {
		fmt.Println()
		fmt.Println(out.Prompt)
	}
}
