package core

// Profile describes the user the assistant handles mail for. It is
// embedded in both the triage and response prompts.
type Profile struct {
	Name     string
	FullName string
	// Background is a short description used to ground decisions.
	Background string
}

// DefaultProfile is used when no profile is configured.
var DefaultProfile = Profile{
	Name:       "John",
	FullName:   "John Doe",
	Background: "Senior software engineer leading a team of 5 developers",
}
