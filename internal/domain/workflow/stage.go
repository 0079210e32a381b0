package workflow

// Stage represents a step in the approval pipeline a request occupies
type Stage string

const (
	StageDraft                 Stage = "draft"
	StageManagerReview         Stage = "manager_review"
	StageParallelVerification  Stage = "parallel_verification"
	StageVPApproval            Stage = "vp_approval"
	StageHOIApproval           Stage = "hoi_approval"
	StageDeanReview            Stage = "dean_review"
	StageDepartmentChecks      Stage = "department_checks"
	StageChiefDirectorApproval Stage = "chief_director_approval"
	StageChairmanApproval      Stage = "chairman_approval"
	StageApproved              Stage = "approved"
	StageRejected              Stage = "rejected"
)

var validStages = map[Stage]bool{
	StageDraft:                 true,
	StageManagerReview:         true,
	StageParallelVerification:  true,
	StageVPApproval:            true,
	StageHOIApproval:           true,
	StageDeanReview:            true,
	StageDepartmentChecks:      true,
	StageChiefDirectorApproval: true,
	StageChairmanApproval:      true,
	StageApproved:              true,
	StageRejected:              true,
}

var terminalStages = map[Stage]bool{
	StageApproved: true,
	StageRejected: true,
}

// IsTerminal returns true if the stage admits no further transitions
func (s Stage) IsTerminal() bool {
	return terminalStages[s]
}

// IsValid returns true if the stage is part of the approval pipeline
func (s Stage) IsValid() bool {
	return validStages[s]
}

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}
