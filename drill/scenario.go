package drill

// Kind classifies the disaster a drill simulates.
type Kind string

const (
	// KindDataCorruption simulates partial data loss inside a collection.
	KindDataCorruption Kind = "data-corruption"
	// KindSystemFailure simulates a complete loss of the serving system.
	KindSystemFailure Kind = "system-failure"
)

// Scenario describes the simulated disaster. It is metadata only; the drill
// records it in the report and otherwise ignores it.
type Scenario struct {
	// Kind classifies the disaster.
	Kind Kind

	// Name is a short scenario identifier for reports.
	Name string

	// AffectedPartitions lists the partitions assumed lost.
	AffectedPartitions []string

	// CorruptionPercent is the assumed share of lost entities.
	CorruptionPercent float64

	// Symptoms are the observations that would trigger this recovery.
	Symptoms []string

	// FailedComponents lists the infrastructure assumed down.
	FailedComponents []string

	// RecoveryRequirements lists the rebuild steps the drill rehearses.
	RecoveryRequirements []string
}

// DataCorruptionScenario returns a canned partial-data-loss scenario.
func DataCorruptionScenario() Scenario {
	return Scenario{
		Kind:               KindDataCorruption,
		Name:               "partial_data_loss",
		AffectedPartitions: []string{"region_us", "category_tech"},
		CorruptionPercent:  15.5,
		Symptoms: []string{
			"search result counts dropped",
			"partitions not responding",
			"index integrity errors",
		},
		RecoveryRequirements: []string{
			"restore data from backup",
			"rebuild indexes",
		},
	}
}

// SystemFailureScenario returns a canned total-outage scenario.
func SystemFailureScenario() Scenario {
	return Scenario{
		Kind: KindSystemFailure,
		Name: "complete_system_failure",
		FailedComponents: []string{
			"vector store server",
			"index storage",
			"metadata storage",
		},
		RecoveryRequirements: []string{
			"rebuild the serving system",
			"restore data from backup",
			"rebuild indexes",
			"restart services",
		},
	}
}
