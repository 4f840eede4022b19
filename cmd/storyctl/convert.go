package main

import (
	"fmt"
	"io"

	"github.com/AaronLay10/StoryEngine/internal/config"
	"github.com/AaronLay10/StoryEngine/internal/story"
)

func convertCmd(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("convert", errOut)
	if exit, err := parseFlags(fs, args); exit || err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return &ExitError{Code: 2, Message: "convert: want IN and OUT"}
	}
	in, dst := fs.Arg(0), fs.Arg(1)

	g, err := story.LoadFile(in, story.DefaultRegistry(), config.NewLogger("warn", "text", errOut))
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if err := story.WriteFile(dst, g); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	fmt.Fprintf(out, "wrote %s (%d nodes)\n", dst, len(g.Nodes()))
	return nil
}
