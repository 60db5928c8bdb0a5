package orchestrator

// State is where a conversation's current request is in its lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateDispatched   State = "dispatched"
	StatePatchPending State = "patch_pending"
	StatePatchApplied State = "patch_applied"
	StatePatchSkipped State = "patch_skipped"
	StateRecorded     State = "recorded"
)
