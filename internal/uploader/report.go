package uploader

import (
	"fmt"
	"io"
	"strings"

	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/model"
)

var rule = strings.Repeat("=", 60)

// CredentialNotice is the message every operator gets about the shared default password.
func CredentialNotice(membership config.MembershipConfig) string {
	return fmt.Sprintf("All members have been set with default password: %s\n"+
		"They can change it after logging in.", membership.DefaultPassword)
}

// WriteReport prints the human readable result of a run.
func WriteReport(w io.Writer, summary model.UploadSummary, membership config.MembershipConfig) error {
	var b strings.Builder
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "Upload Complete!")
	fmt.Fprintf(&b, "   Success: %d\n", summary.Created)
	fmt.Fprintf(&b, "   Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(&b, "   Errors: %d\n", summary.Failed)
	fmt.Fprintln(&b, rule)

	if failures := summary.Failures(); len(failures) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Failed contacts:")
		for _, f := range failures {
			fmt.Fprintf(&b, "  %d. %s - %s\n", f.Sequence, f.Email, f.Reason)
		}
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, CredentialNotice(membership))

	_, err := io.WriteString(w, b.String())
	return err
}
