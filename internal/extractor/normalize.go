package extractor

import (
	"strings"
	"unicode"

	"gitlab.com/dirk.krummacker/contacts-sync/internal/model"
)

// Normalize turns a raw row into a contact record. It reports false when the row has no usable
// email address: the primary email column wins whenever it is filled, the secondary one is only
// consulted when the primary is empty.
func Normalize(row RawRow) (model.ContactRecord, bool) {
	email := strings.TrimSpace(row.EmailPrimary)
	if email == "" {
		email = strings.TrimSpace(row.EmailSecondary)
	}
	if email == "" || !strings.Contains(email, "@") {
		return model.ContactRecord{}, false
	}

	firstName := strings.TrimSpace(row.FirstName)
	lastName := strings.TrimSpace(row.LastName)
	fullName := strings.TrimSpace(firstName + " " + lastName)
	if fullName == "" {
		localPart, _, _ := strings.Cut(email, "@")
		fullName = titleCase(localPart)
	}
	if firstName == "" {
		firstName = fullName
		if tokens := strings.Fields(fullName); len(tokens) > 0 {
			firstName = tokens[0]
		}
	}

	return model.ContactRecord{
		Email:       email,
		FullName:    fullName,
		FirstName:   firstName,
		PhoneNumber: normalizePhone(row.Phone),
	}, true
}

// normalizePhone strips the apostrophe spreadsheets prepend to keep a number from being
// reinterpreted as numeric. Empty phones become nil.
func normalizePhone(phone string) *string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "'")
	if phone == "" {
		return nil
	}
	return &phone
}

// titleCase upper-cases every letter that follows a non-letter and lower-cases all others,
// so "jane.doe" becomes "Jane.Doe".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	afterLetter := false
	for _, r := range s {
		if !unicode.IsLetter(r) {
			b.WriteRune(r)
			afterLetter = false
			continue
		}
		if afterLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToTitle(r))
		}
		afterLetter = true
	}
	return b.String()
}
