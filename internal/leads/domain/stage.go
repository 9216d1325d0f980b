package domain

// Stage keys tag equivalent stages across pipelines. Tenant pipelines created
// from the default template carry these keys; user-created stages may have
// none, in which case cross-pipeline matching falls back to the stage name.
const (
	StageKeyNew         = "new"
	StageKeyContacted   = "contacted"
	StageKeyQualified   = "qualified"
	StageKeyProposal    = "proposal"
	StageKeyNegotiation = "negotiation"
	StageKeyWon         = "won"
	StageKeyLost        = "lost"
)

// ResolutionKind tags how a requested stage was reconciled against the
// lead's own pipeline.
type ResolutionKind string

const (
	// ResolutionDirect means the requested stage was applied as-is: it either
	// belongs to the lead's pipeline or to a universal (shared) pipeline.
	ResolutionDirect ResolutionKind = "direct"
	// ResolutionMapped means an equivalent stage in the lead's pipeline was
	// substituted, matched by stage key or name.
	ResolutionMapped ResolutionKind = "mapped"
	// ResolutionCloned means no equivalent existed and a new stage was
	// created in the lead's pipeline.
	ResolutionCloned ResolutionKind = "cloned"
)

// StageResolution is the outcome of reconciling a requested stage id.
// The caller applies StageID and can tell whether resolution had the side
// effect of creating a stage (Kind == ResolutionCloned).
type StageResolution struct {
	Kind            ResolutionKind
	StageID         int64
	PreviousStageID int64
}

// A lead's stage is an unrestricted pointer: any stage may move to any other,
// including out of a final stage, and a move onto the current stage is still
// recorded. There is deliberately no transition graph.
