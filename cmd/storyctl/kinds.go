package main

import (
	"fmt"
	"io"

	"github.com/AaronLay10/StoryEngine/internal/story"
)

// kindsCmd lists the node kinds a document may use.
func kindsCmd(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("kinds", errOut)
	if exit, err := parseFlags(fs, args); exit || err != nil {
		return err
	}
	for _, k := range story.DefaultRegistry().Kinds() {
		fmt.Fprintln(out, k)
	}
	return nil
}
