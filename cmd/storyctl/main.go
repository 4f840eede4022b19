// Command storyctl validates, converts and plays story graph documents
// without running the orchestrator service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// ExitError carries a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

const usage = `storyctl - story graph tool

Usage:
  storyctl validate FILE...
  storyctl convert IN OUT
  storyctl run [options] FILE
  storyctl kinds

Files ending in .yaml or .yml are YAML documents, anything else is JSON.
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out, errOut io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return &ExitError{Code: 2}
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "validate":
		return validateCmd(rest, out, errOut)
	case "convert":
		return convertCmd(rest, out, errOut)
	case "run":
		return playCmd(rest, in, out, errOut)
	case "kinds":
		return kindsCmd(rest, out, errOut)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", cmd)}
	}
}

// newFlagSet returns a flag set that reports parse errors instead of exiting.
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("storyctl "+name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// parseFlags maps -h to a clean exit and other parse failures to code 2.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	return false, nil
}
