package actor

import "context"

// CommandAction is the pure mapping target of classifyCommand: what a
// Command means to do, before any side effect runs. Kept separate from
// executeAction so the mapping itself is unit-testable without a running
// actor.
type CommandAction interface{ isCommandAction() }

type actionEnqueueInput struct {
	ID     int64
	Text   string
	Raw    bool // true => ExecuteSql (/sql path), false => free-form ProcessInput
	Ctx    context.Context
	Cancel context.CancelFunc
}

type actionConfirm struct {
	ID     int64
	Sql    string
	Ctx    context.Context
	Cancel context.CancelFunc
}

type actionCancelCurrent struct{}
type actionCancelByID struct{ ID int64 }
type actionCancelAll struct{}
type actionCancelPendingQuery struct{ Sql *string }
type actionGrantPlaintextConsent struct{}
type actionShutdown struct{}

func (actionEnqueueInput) isCommandAction()          {}
func (actionConfirm) isCommandAction()               {}
func (actionCancelCurrent) isCommandAction()         {}
func (actionCancelByID) isCommandAction()            {}
func (actionCancelAll) isCommandAction()             {}
func (actionCancelPendingQuery) isCommandAction()    {}
func (actionGrantPlaintextConsent) isCommandAction() {}
func (actionShutdown) isCommandAction()              {}

// classifyCommand is a pure function: one Command maps to exactly one
// CommandAction. All side effects happen in executeAction.
func classifyCommand(cmd Command) CommandAction {
	switch c := cmd.(type) {
	case ProcessInput:
		return actionEnqueueInput{ID: c.ID, Text: c.Text, Raw: false, Ctx: c.Ctx, Cancel: c.Cancel}
	case ExecuteSql:
		return actionEnqueueInput{ID: c.ID, Text: c.Sql, Raw: true, Ctx: c.Ctx, Cancel: c.Cancel}
	case ConfirmQuery:
		return actionConfirm{ID: c.ID, Sql: c.Sql, Ctx: c.Ctx, Cancel: c.Cancel}
	case CancelCurrent:
		return actionCancelCurrent{}
	case CancelRequest:
		return actionCancelByID{ID: c.ID}
	case CancelAll:
		return actionCancelAll{}
	case CancelPendingQuery:
		return actionCancelPendingQuery{Sql: c.Sql}
	case GrantPlaintextConsent:
		return actionGrantPlaintextConsent{}
	case Shutdown:
		return actionShutdown{}
	default:
		return actionShutdown{}
	}
}
