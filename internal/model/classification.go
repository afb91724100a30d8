// Package model defines the core domain models used throughout the application.
package model

// ClassificationStatus tracks a transaction through the review lifecycle.
type ClassificationStatus string

// Classification status constants.
const (
	StatusUnclassified ClassificationStatus = "UNCLASSIFIED"
	StatusSuggested    ClassificationStatus = "SUGGESTED"
	StatusConfirmed    ClassificationStatus = "CONFIRMED"
	StatusCorrected    ClassificationStatus = "CORRECTED"
)

// Valid reports whether s is one of the known statuses.
func (s ClassificationStatus) Valid() bool {
	switch s {
	case StatusUnclassified, StatusSuggested, StatusConfirmed, StatusCorrected:
		return true
	}
	return false
}

// Classifiable reports whether a suggestion may still be (re)materialised.
func (s ClassificationStatus) Classifiable() bool {
	return s == StatusUnclassified || s == StatusSuggested
}
