package main

import (
	"fmt"
	"io"

	"github.com/AaronLay10/StoryEngine/internal/config"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

func validateCmd(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("validate", errOut)
	if exit, err := parseFlags(fs, args); exit || err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return &ExitError{Code: 2, Message: "validate: no files given"}
	}

	logger := config.NewLogger("warn", "text", errOut)
	reg := story.DefaultRegistry()
	failed := 0
	for _, path := range fs.Args() {
		g, err := story.LoadFile(path, reg, logger)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		problems := g.Validate()
		if len(problems) == 0 {
			fmt.Fprintf(out, "%s: ok (%d nodes, %d connections)\n", path, len(g.Nodes()), len(g.Connections()))
			continue
		}
		failed++
		fmt.Fprintf(out, "%s: %d problem(s)\n", path, len(problems))
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}
	if failed > 0 {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%d of %d graph(s) failed validation", failed, fs.NArg())}
	}
	return nil
}
