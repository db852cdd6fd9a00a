package donor

import (
	"fmt"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

var eligibilityQuestions = []model.EligibilityQuestion{
	{ID: "recent_donation", Text: "Have you donated blood in the last 56 days?", EligibleAnswer: false},
	{ID: "feeling_ill", Text: "Are you currently feeling ill or have a fever?", EligibleAnswer: false},
	{ID: "blood_thinners", Text: "Have you taken blood thinners in the last 48 hours?", EligibleAnswer: false},
	{ID: "weight", Text: "Do you weigh at least 110 lbs?", EligibleAnswer: true},
	{ID: "recent_surgery", Text: "Have you had surgery in the last 6 months?", EligibleAnswer: false},
	{ID: "dental_work", Text: "Have you had dental work in the last 72 hours?", EligibleAnswer: false},
	{ID: "pregnancy", Text: "Are you pregnant or have you given birth in the last 6 months?", EligibleAnswer: false, FemaleOnly: true},
	{ID: "breastfeeding", Text: "Are you currently breastfeeding?", EligibleAnswer: false, FemaleOnly: true},
}

// Questions returns the questionnaire for the given sex.
func Questions(sex string) []model.EligibilityQuestion {
	out := make([]model.EligibilityQuestion, 0, len(eligibilityQuestions))
	for _, q := range eligibilityQuestions {
		if q.FemaleOnly && sex != "female" {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Evaluate requires an answer to every applicable question. The donor is
// eligible only if every answer matches; the texts of the others become
// the reasons.
func Evaluate(req model.EligibilityCheckRequest) (*model.EligibilityCheckResult, error) {
	result := &model.EligibilityCheckResult{Status: model.EligibilityEligible, Reasons: []string{}}

	for _, q := range Questions(req.Sex) {
		answer, ok := req.Answers[q.ID]
		if !ok {
			return nil, apperrors.NewValidation(fmt.Sprintf("answer required for %s", q.ID), nil)
		}
		if answer != q.EligibleAnswer {
			result.Reasons = append(result.Reasons, q.Text)
		}
	}

	if len(result.Reasons) > 0 {
		result.Status = model.EligibilityIneligible
	}
	return result, nil
}
