package model

import "time"

// RunState is a step of the per-user pipeline state machine.
type RunState string

const (
	StateStart               RunState = "Start"
	StateCollectionFetched   RunState = "CollectionFetched"
	StateGamesReconciled     RunState = "GamesReconciled"
	StateMechanicsReconciled RunState = "MechanicsReconciled"
	StateAggregated          RunState = "Aggregated"
	StateDone                RunState = "Done"
	StateAborted             RunState = "Aborted"
)

// RunStatus is the caller-facing result of a run.
type RunStatus string

const (
	// RunCompleted means every stage ran; some batches may still have failed.
	RunCompleted RunStatus = "completed"
	// RunPending means the catalog is still preparing the collection and
	// nothing was persisted. Retry the whole run later.
	RunPending RunStatus = "pending"
	// RunAborted means the run stopped on an error.
	RunAborted RunStatus = "aborted"
)

// BatchSummary counts the item-detail batches of one reconciliation stage.
type BatchSummary struct {
	Batches   int `json:"batches"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunReport summarizes one pipeline run. The counts are informational and
// never decide success.
type RunReport struct {
	RunID    string    `json:"runId"`
	UserName string    `json:"username"`
	Status   RunStatus `json:"status"`
	State    RunState  `json:"state"`
	Message  string    `json:"message,omitempty"`

	EntriesSaved   int `json:"entriesSaved"`
	EntriesRemoved int `json:"entriesRemoved"`
	EntriesSkipped int `json:"entriesSkipped"`

	GamesCached  int          `json:"gamesCached"`
	GamesFetched int          `json:"gamesFetched"`
	GamesSkipped int          `json:"gamesSkipped"`
	GameBatches  BatchSummary `json:"gameBatches"`

	MechanicsAdded   int          `json:"mechanicsAdded"`
	MechanicsSkipped int          `json:"mechanicsSkipped"`
	MechanicBatches  BatchSummary `json:"mechanicBatches"`

	StatsSaved int `json:"userMechanicsSaved"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// FailedBatches is the number of batches skipped across both stages.
func (r *RunReport) FailedBatches() int {
	return r.GameBatches.Failed + r.MechanicBatches.Failed
}
