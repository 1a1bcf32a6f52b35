package domain

import "strings"

// ValidateRequirement checks a free-text requirement before retrieval.
func ValidateRequirement(requirement string) error {
	if strings.TrimSpace(requirement) == "" {
		return NewValidationError("requirement", requirement, ErrEmptyRequirement)
	}
	return nil
}

// Validate checks that every field the generation prompt demands is present.
func (tc TestCase) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"Test_ID", tc.TestID},
		{"Feature", tc.Feature},
		{"Test_Scenario", tc.TestScenario},
		{"Expected_Result", tc.ExpectedResult},
		{"Grounded_In", tc.GroundedIn},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return NewValidationError(f.name, f.value, ErrMissingField)
		}
	}
	return nil
}
