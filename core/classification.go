package core

// Classification is the triage outcome for an email.
type Classification string

const (
	// ClassifyIgnore means the email needs no action at all.
	ClassifyIgnore Classification = "ignore"

	// ClassifyNotify means the email carries information worth surfacing
	// to the user but needs no reply.
	ClassifyNotify Classification = "notify"

	// ClassifyRespond means the email requires a reply and routes to the
	// response agent.
	ClassifyRespond Classification = "respond"
)

// ParseClassification validates a model-produced classification string.
// Anything outside the three literals is rejected; callers decide whether
// to re-prompt or fail.
func ParseClassification(s string) (Classification, error) {
	switch Classification(s) {
	case ClassifyIgnore, ClassifyNotify, ClassifyRespond:
		return Classification(s), nil
	}
	return "", &InvalidClassificationError{Got: s}
}

// Valid reports whether c is one of the three accepted literals.
func (c Classification) Valid() bool {
	switch c {
	case ClassifyIgnore, ClassifyNotify, ClassifyRespond:
		return true
	}
	return false
}
