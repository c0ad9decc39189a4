package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/extractor"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/model"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/uploader"
)

// sampleSize is the number of contacts shown before an upload.
const sampleSize = 5

var assumeYes bool

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show which contacts would be uploaded",
	RunE:  runPreview,
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Create a member for every contact with a usable email address",
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false,
		"upload without asking, acknowledging the shared default password")
}

func runPreview(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	records, stats, err := extract(out)
	if err != nil {
		return err
	}
	printPreview(out, records, stats)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	records, stats, err := extract(out)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no valid email addresses found in " + cfg.Source.Path)
	}
	printPreview(out, records, stats)

	if !assumeYes {
		ok, err := confirm(cmd.InOrStdin(), out, len(records))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Upload cancelled")
			return nil
		}
	}

	fmt.Fprintf(out, "\nUploading %d contacts to %s...\n\n", len(records), cfg.Remote.BaseURL)
	u := uploader.New(cfg.Remote, cfg.Membership, uploader.WithProgress(out))
	summary := u.Upload(cmd.Context(), records)
	if err := uploader.WriteReport(out, summary, cfg.Membership); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d contacts could not be uploaded", summary.Failed, summary.Total())
	}
	return nil
}

// extract reads the whole export before anything is uploaded, so a broken file never leaves a
// partial upload behind.
func extract(out io.Writer) ([]model.ContactRecord, extractor.Stats, error) {
	if cfg.Source.Path == "" {
		return nil, extractor.Stats{}, errors.New("no address book export given, use --csv or source.path")
	}
	fmt.Fprintf(out, "Reading contacts from %s...\n", cfg.Source.Path)
	return extractor.ReadAll(cfg.Source.Path, cfg.Source)
}

func printPreview(out io.Writer, records []model.ContactRecord, stats extractor.Stats) {
	fmt.Fprintf(out, "Found %d valid email addresses (%d rows without one skipped)\n", len(records), stats.Skipped)
	if len(records) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sample contacts:")
	for i, r := range records[:min(sampleSize, len(records))] {
		fmt.Fprintf(out, "  %d. %s - %s\n", i+1, r.Email, r.FullName)
	}
	fmt.Fprintln(out)
}

// confirm asks the operator to approve the upload, including the shared default password every
// new member receives.
func confirm(in io.Reader, out io.Writer, count int) (bool, error) {
	fmt.Fprintln(out, uploader.CredentialNotice(cfg.Membership))
	fmt.Fprintf(out, "Upload %d contacts? (y/n): ", count)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
}
