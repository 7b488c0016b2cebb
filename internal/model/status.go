package model

// Status is the lifecycle state of a Candidate.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEvaluated Status = "evaluated"
	StatusPromoted  Status = "promoted"
	StatusRejected  Status = "rejected"
)

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusEvaluated, StatusPromoted, StatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a candidate may move from one status to
// another. Promoted and rejected are terminal except for a forced
// re-evaluation, which re-admits rejected (never promoted) candidates.
// All transition checks go through here; stores must not compare status
// strings themselves.
func CanTransition(from, to Status, force bool) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	if from == to {
		return false
	}
	switch from {
	case StatusPending:
		return true
	case StatusEvaluated:
		// Review outcome or forced re-run.
		return to == StatusPromoted || to == StatusRejected || (force && to == StatusPending)
	case StatusRejected:
		// A forced re-run may land a rejected candidate anywhere but back
		// on rejected.
		return force
	case StatusPromoted:
		return false
	}
	return false
}
