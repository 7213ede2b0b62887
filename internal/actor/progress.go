package actor

// ProgressMsg is carried on the actor's dedicated progress channel for UX
// affordances (spinners, partial rendering) distinct from the
// request-addressed Response stream.
type ProgressMsg interface{ isProgressMsg() }

type LlmStarted struct{ ID int64 }
type LlmStreamingToken struct {
	ID    int64
	Token string
}
type LlmCompleteMsg struct {
	ID    int64
	Final string
}
type DbStarted struct{ ID int64 }
type DbComplete struct{ ID int64 }
type ProgressCancelled struct{ ID int64 }
type ProgressError struct {
	ID  int64
	Msg string
}

func (LlmStarted) isProgressMsg()        {}
func (LlmStreamingToken) isProgressMsg() {}
func (LlmCompleteMsg) isProgressMsg()    {}
func (DbStarted) isProgressMsg()         {}
func (DbComplete) isProgressMsg()        {}
func (ProgressCancelled) isProgressMsg() {}
func (ProgressError) isProgressMsg()     {}
