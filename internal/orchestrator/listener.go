package orchestrator

import "github.com/AaronLay10/StoryEngine/internal/story"

// Listener observes a run. Callbacks are invoked synchronously from the
// goroutine driving the Runtime and must not call back into it.
type Listener interface {
	StoryStart(rt *Runtime)
	// StoryEnd reports success=true only when an End node was reached.
	// rt.State() tells a stop apart from a dead end.
	StoryEnd(rt *Runtime, success bool)
	NodeEnter(rt *Runtime, node story.Node)
	NodeExit(rt *Runtime, node story.Node)
	Error(rt *Runtime, msg string)
}

// ListenerFuncs adapts optional functions to Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	OnStoryStart func(rt *Runtime)
	OnStoryEnd   func(rt *Runtime, success bool)
	OnNodeEnter  func(rt *Runtime, node story.Node)
	OnNodeExit   func(rt *Runtime, node story.Node)
	OnError      func(rt *Runtime, msg string)
}

func (f ListenerFuncs) StoryStart(rt *Runtime) {
	if f.OnStoryStart != nil {
		f.OnStoryStart(rt)
	}
}

func (f ListenerFuncs) StoryEnd(rt *Runtime, success bool) {
	if f.OnStoryEnd != nil {
		f.OnStoryEnd(rt, success)
	}
}

func (f ListenerFuncs) NodeEnter(rt *Runtime, node story.Node) {
	if f.OnNodeEnter != nil {
		f.OnNodeEnter(rt, node)
	}
}

func (f ListenerFuncs) NodeExit(rt *Runtime, node story.Node) {
	if f.OnNodeExit != nil {
		f.OnNodeExit(rt, node)
	}
}

func (f ListenerFuncs) Error(rt *Runtime, msg string) {
	if f.OnError != nil {
		f.OnError(rt, msg)
	}
}
