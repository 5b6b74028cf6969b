package session

// handlerFunc processes one content node (or the bare session node, for
// actions without contents) of an inbound action. Handlers run in table
// order under the session lock; the first error aborts the action and is
// turned into an iq error by the caller.
type handlerFunc func(s *Session, action string, content *contentNode) error

// actionEntry admits a set of wire action names within a contiguous state
// range and names the handlers to run. If newState is not stateInvalid the
// session moves there after all handlers succeed.
type actionEntry struct {
	actions  []string
	minState State
	maxState State
	funcs    []handlerFunc
	newState State
}

// actionTable is scanned linearly; the first entry naming the action wins,
// so an action listed twice with different ranges resolves to the earlier
// entry regardless of state.
var actionTable = []actionEntry{
	{
		actions:  []string{"initiate", "session-initiate"},
		minState: PendingCreated,
		maxState: PendingCreated,
		funcs:    []handlerFunc{handleCreate, handleDirection, handleCodecs},
		newState: PendingInitiated,
	},
	{
		actions:  []string{"accept", "session-accept"},
		minState: PendingInitiated,
		maxState: PendingInitiated,
		funcs:    []handlerFunc{handleDirection, handleCodecs, handleAccept},
		newState: Active,
	},
	{
		actions:  []string{"reject"},
		minState: PendingInitiated,
		maxState: PendingInitiated,
		funcs:    []handlerFunc{handleTerminate},
		newState: stateInvalid,
	},
	{
		actions:  []string{"terminate", "session-terminate"},
		minState: PendingInitiated,
		maxState: Ended,
		funcs:    []handlerFunc{handleTerminate},
		newState: stateInvalid,
	},
	{
		actions:  []string{"candidates", "transport-info"},
		minState: PendingInitiated,
		maxState: Active,
		funcs:    []handlerFunc{handleCandidates},
		newState: stateInvalid,
	},
	{
		actions:  []string{"content-add"},
		minState: Active,
		maxState: Active,
		funcs:    []handlerFunc{handleCreate, handleDirection, handleCodecs},
		newState: stateInvalid,
	},
	{
		actions:  []string{"content-modify"},
		minState: PendingInitiated,
		maxState: Active,
		funcs:    []handlerFunc{handleDirection},
		newState: stateInvalid,
	},
	{
		actions:  []string{"content-accept"},
		minState: PendingInitiated,
		maxState: Active,
		funcs:    []handlerFunc{handleDirection, handleCodecs, handleAccept},
		newState: stateInvalid,
	},
	{
		actions:  []string{"content-remove", "content-decline"},
		minState: PendingInitiated,
		maxState: Active,
		funcs:    []handlerFunc{handleRemove},
		newState: stateInvalid,
	},
}

// lookupAction finds the table entry for an action name, or nil if the
// action is unknown.
func lookupAction(action string) *actionEntry {
	for i := range actionTable {
		for _, name := range actionTable[i].actions {
			if name == action {
				return &actionTable[i]
			}
		}
	}
	return nil
}

// admits reports whether the entry allows the action in the given state.
func (e *actionEntry) admits(s State) bool {
	return s >= e.minState && s <= e.maxState
}
