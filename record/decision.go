package record

// Decision is the action a sync cycle takes; it is recomputed every cycle.
type Decision string

const (
	// DecisionNoop leaves the index untouched.
	DecisionNoop Decision = "noop"
	// DecisionFull embeds every description into an empty index.
	DecisionFull Decision = "full"
	// DecisionAppend embeds only the positions past the indexed prefix.
	DecisionAppend Decision = "append"
	// DecisionRebuild deletes every entry and embeds every description.
	DecisionRebuild Decision = "rebuild"
)

// Mutates reports whether the decision writes to the index.
func (d Decision) Mutates() bool {
	return d != DecisionNoop
}
