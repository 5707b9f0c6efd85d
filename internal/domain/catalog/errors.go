package catalog

import (
	"errors"
	"strings"
)

var (
	ErrAllowanceNotFound = errors.New("allowance not found")
	ErrDuplicateName     = errors.New("allowance already exists")
	ErrRuleNotFound      = errors.New("deduction rule not found")
)

// ValidationError carries every issue found in a payload.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type issues []Issue

func (list *issues) add(field, reason string) {
	*list = append(*list, Issue{Field: field, Reason: reason})
}

func (list issues) err() error {
	if len(list) == 0 {
		return nil
	}
	return &ValidationError{Issues: list}
}
