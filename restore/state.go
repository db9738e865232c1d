package restore

// State is the phase a restore is in. Transitions are strictly forward;
// Completed and Failed are terminal.
type State uint8

const (
	StateIdle State = iota
	StateVerifyingArtifact
	StateReconstructingSchema
	StateRecreatingPartitionsAndIndexes
	StateLoadingData
	StateVerifyingIntegrity
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                           "idle",
	StateVerifyingArtifact:              "verifying_artifact",
	StateReconstructingSchema:           "reconstructing_schema",
	StateRecreatingPartitionsAndIndexes: "recreating_partitions_and_indexes",
	StateLoadingData:                    "loading_data",
	StateVerifyingIntegrity:             "verifying_integrity",
	StateCompleted:                      "completed",
	StateFailed:                         "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
