package domain

// Stage is a step of the per-item processing state machine
type Stage string

// processing stages
const (
	StageFetched       Stage = "fetched"
	StageClassified    Stage = "classified"
	StageDropped       Stage = "dropped"
	StageExtracted     Stage = "extracted"
	StageNormalized    Stage = "normalized"
	StageQualityGated  Stage = "quality_gated"
	StageFingerprinted Stage = "fingerprinted"
	StageAssembled     Stage = "assembled"
	StageDispatched    Stage = "dispatched"
)

// Terminal reports whether no further transition follows s
func (s Stage) Terminal() bool {
	return s == StageDropped || s == StageDispatched
}
