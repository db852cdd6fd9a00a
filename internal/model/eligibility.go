package model

type EligibilityQuestion struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	EligibleAnswer bool   `json:"eligible_answer"`
	FemaleOnly     bool   `json:"female_only,omitempty"`
}

type EligibilityCheckRequest struct {
	Sex     string          `json:"sex" binding:"required,oneof=female male other"`
	Answers map[string]bool `json:"answers" binding:"required"`
}

type EligibilityCheckResult struct {
	Status  EligibilityStatus `json:"status"`
	Reasons []string          `json:"reasons"`
}
