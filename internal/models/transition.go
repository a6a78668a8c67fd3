package models

// TransitionStep names the phases of a year transition. The state is
// per invocation and only used for logging and failure reporting; it is
// never persisted.
type TransitionStep string

const (
	TransitionValidating TransitionStep = "VALIDATING"
	TransitionArchiving  TransitionStep = "ARCHIVING"
	TransitionPromoting  TransitionStep = "PROMOTING"
	TransitionActivating TransitionStep = "ACTIVATING"
	TransitionDone       TransitionStep = "DONE"
	TransitionFailed     TransitionStep = "FAILED"
)

// PromotionFailure records one student whose promotion write failed.
// The transition keeps going past these (best-effort loop) and reports
// them instead of claiming full success.
type PromotionFailure struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Reason      string `json:"reason"`
}

// TransitionResult summarises a completed year transition.
type TransitionResult struct {
	Message        string             `json:"msg"`
	ActiveYearID   string             `json:"active_year_id"`
	ActiveYearName string             `json:"active_year_name"`
	Archived       int                `json:"archived"`
	Promoted       int                `json:"promoted"`
	Unassigned     int                `json:"unassigned"`
	Failed         []PromotionFailure `json:"failed,omitempty"`
}
