package model

// MemberRequest is the body of a member creation request sent to the member store.
// PhoneNumber is serialized as null when absent.
type MemberRequest struct {
	Email            string  `json:"email"`
	PasswordHash     string  `json:"password_hash"`
	FullName         string  `json:"full_name"`
	FirstName        string  `json:"first_name"`
	MembershipNumber string  `json:"membership_number"`
	MembershipType   string  `json:"membership_type"`
	MemberSince      string  `json:"member_since"`
	MemberUntil      *string `json:"member_until"`
	PhoneNumber      *string `json:"phone_number"`
	IsActive         *bool   `json:"is_active"`
}

// Member is the data structure for a person holding a membership, as stored by the member store.
// The password placeholder is never serialized back to clients.
type Member struct {
	Id               string  `json:"id"                db:"id"`
	Email            string  `json:"email"             db:"email"`
	PasswordHash     string  `json:"-"                 db:"password_hash"`
	FullName         string  `json:"full_name"         db:"full_name"`
	FirstName        string  `json:"first_name"        db:"first_name"`
	PhoneNumber      *string `json:"phone_number"      db:"phone_number"`
	MembershipNumber string  `json:"membership_number" db:"membership_number"`
	MembershipType   string  `json:"membership_type"   db:"membership_type"`
	MemberSince      string  `json:"member_since"      db:"member_since"`
	MemberUntil      *string `json:"member_until"      db:"member_until"`
	IsActive         bool    `json:"is_active"         db:"is_active"`
}
