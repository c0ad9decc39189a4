package model

import "fmt"

// ContactRecord is a normalized entry of an address book export. Email always contains an '@'.
// PhoneNumber is nil when the source had no phone.
type ContactRecord struct {
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	FirstName   string  `json:"first_name"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// OutcomeKind classifies what happened to a single contact during an upload.
type OutcomeKind int

const (
	Created OutcomeKind = iota
	Skipped
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// UploadOutcome is the result of submitting one contact. Status is the HTTP status code, or 0 when the
// request never got a response. Reason is only set for failures and for skipped contacts.
type UploadOutcome struct {
	Sequence int         `json:"sequence"`
	Email    string      `json:"email"`
	Kind     OutcomeKind `json:"kind"`
	Status   int         `json:"status,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// UploadSummary aggregates the outcomes of one run, in input order.
type UploadSummary struct {
	Created  int             `json:"created"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Outcomes []UploadOutcome `json:"outcomes"`
}

// Total returns the number of contacts that were submitted.
func (s UploadSummary) Total() int {
	return s.Created + s.Skipped + s.Failed
}

// Failures returns the outcomes of the contacts that could not be uploaded.
func (s UploadSummary) Failures() []UploadOutcome {
	var failures []UploadOutcome
	for _, o := range s.Outcomes {
		if o.Kind == Failed {
			failures = append(failures, o)
		}
	}
	return failures
}
