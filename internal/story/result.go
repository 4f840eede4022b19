package story

import "time"

// ResultKind tells the engine what to do after a node executes.
type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultWait
	ResultWaitForInput
	ResultWaitForCondition
	ResultEnd
)

func (k ResultKind) String() string {
	switch k {
	case ResultContinue:
		return "continue"
	case ResultWait:
		return "wait"
	case ResultWaitForInput:
		return "wait_for_input"
	case ResultWaitForCondition:
		return "wait_for_condition"
	case ResultEnd:
		return "end"
	}
	return "unknown"
}

// Result is returned by Node.Execute.
type Result struct {
	Kind      ResultKind
	Port      string
	Duration  time.Duration
	Predicate func(*Environment) bool
}

// Continue advances immediately through port.
func Continue(port string) Result {
	return Result{Kind: ResultContinue, Port: port}
}

// Wait suspends for d, then advances through port.
func Wait(d time.Duration, port string) Result {
	if d < 0 {
		d = 0
	}
	return Result{Kind: ResultWait, Port: port, Duration: d}
}

// WaitSeconds is Wait with a duration in seconds, as authored in documents.
func WaitSeconds(seconds float64, port string) Result {
	return Wait(time.Duration(seconds*float64(time.Second)), port)
}

// WaitForInput suspends until the engine receives input. A port selected by
// the input (a choice, an explicit port) overrides port.
func WaitForInput(port string) Result {
	return Result{Kind: ResultWaitForInput, Port: port}
}

// WaitForCondition suspends until pred returns true, polled once per tick.
func WaitForCondition(pred func(*Environment) bool, port string) Result {
	return Result{Kind: ResultWaitForCondition, Port: port, Predicate: pred}
}

// End terminates the run successfully.
func End() Result {
	return Result{Kind: ResultEnd}
}
