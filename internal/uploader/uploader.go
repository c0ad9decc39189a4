// Package uploader submits contact records to the member store and accounts for the outcome of
// every single submission.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/model"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-sync/pkg/model"
)

// HTTPDoer is the interface for executing HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Uploader submits contact records one at a time, in order. It keeps no state between runs, so
// membership numbers restart at 0001 with every run.
type Uploader struct {
	remote     config.RemoteConfig
	membership config.MembershipConfig
	client     HTTPDoer
	now        func() time.Time
	progress   io.Writer
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(u *Uploader) { u.client = client }
}

// WithClock replaces the clock the issue date is taken from.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

// WithProgress makes the uploader print one line per submitted contact.
func WithProgress(w io.Writer) Option {
	return func(u *Uploader) { u.progress = w }
}

// New creates an Uploader for the given member store endpoint and membership defaults.
func New(remote config.RemoteConfig, membership config.MembershipConfig, opts ...Option) *Uploader {
	u := &Uploader{
		remote:     remote,
		membership: membership,
		client:     &http.Client{Timeout: remote.Timeout()},
		now:        time.Now,
		progress:   io.Discard,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// MembershipNumber renders the membership number of the seq-th contact of a run.
func MembershipNumber(prefix string, year int, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// BuildRequest maps a contact record to the body of a member creation request. seq is the
// 1-based position of the record within the run.
func (u *Uploader) BuildRequest(record model.ContactRecord, seq int, issued time.Time) pkgmodel.MemberRequest {
	year := u.membership.NumberYear
	if year == 0 {
		year = issued.Year()
	}
	expiry := u.membership.ExpiryDate
	active := true
	return pkgmodel.MemberRequest{
		Email:            record.Email,
		PasswordHash:     u.membership.DefaultPassword,
		FullName:         record.FullName,
		FirstName:        record.FirstName,
		MembershipNumber: MembershipNumber(u.membership.NumberPrefix, year, seq),
		MembershipType:   u.membership.Type,
		MemberSince:      issued.Format(config.DateLayout),
		MemberUntil:      &expiry,
		PhoneNumber:      record.PhoneNumber,
		IsActive:         &active,
	}
}

// Upload submits all records strictly in order and returns one outcome per record. A failed
// submission never stops the run.
func (u *Uploader) Upload(ctx context.Context, records []model.ContactRecord) model.UploadSummary {
	runID := uuid.NewString()
	issued := u.now()
	logger.Info("upload started", "run", runID, "contacts", len(records), "endpoint", u.endpoint())

	outcomes := make([]model.UploadOutcome, 0, len(records))
	for i, record := range records {
		seq := i + 1
		outcome := u.Submit(ctx, record, seq, issued)
		u.reportProgress(outcome, len(records))
		outcomes = append(outcomes, outcome)
	}

	summary := Summarize(outcomes)
	logger.Info("upload finished", "run", runID,
		"created", summary.Created, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary
}

// Summarize folds a list of outcomes into a summary.
func Summarize(outcomes []model.UploadOutcome) model.UploadSummary {
	summary := model.UploadSummary{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Kind {
		case model.Created:
			summary.Created++
		case model.Skipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	return summary
}

// Submit sends a single member creation request and classifies the answer.
func (u *Uploader) Submit(ctx context.Context, record model.ContactRecord, seq int, issued time.Time) model.UploadOutcome {
	outcome := model.UploadOutcome{Sequence: seq, Email: record.Email}

	body, err := json.Marshal(u.BuildRequest(record, seq, issued))
	if err != nil {
		return failed(outcome, 0, fmt.Sprintf("encode request: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint(), bytes.NewReader(body))
	if err != nil {
		return failed(outcome, 0, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("apikey", u.remote.APIKey)
	req.Header.Set("Authorization", "Bearer "+u.remote.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if u.remote.Prefer != "" {
		req.Header.Set("Prefer", u.remote.Prefer)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		logger.Warn("member request failed", "seq", seq, "email", record.Email, "error", err)
		return failed(outcome, 0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("member response unreadable", "seq", seq, "email", record.Email, "error", err)
		return failed(outcome, resp.StatusCode, fmt.Sprintf("read response: %v", err))
	}

	return classify(outcome, resp.StatusCode, respBody)
}

// classify maps the member store's status code to an outcome.
func classify(outcome model.UploadOutcome, status int, body []byte) model.UploadOutcome {
	outcome.Status = status
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		outcome.Kind = model.Created
	case http.StatusConflict:
		outcome.Kind = model.Skipped
		outcome.Reason = "already exists"
	default:
		outcome = failed(outcome, status, fmt.Sprintf("%d %s: %s",
			status, http.StatusText(status), strings.TrimSpace(string(body))))
		logger.Warn("member rejected", "seq", outcome.Sequence, "email", outcome.Email, "status", status)
	}
	return outcome
}

func failed(outcome model.UploadOutcome, status int, reason string) model.UploadOutcome {
	outcome.Kind = model.Failed
	outcome.Status = status
	outcome.Reason = reason
	return outcome
}

// endpoint returns the URL of the member resource, including the conflict target if any.
func (u *Uploader) endpoint() string {
	endpoint := strings.TrimRight(u.remote.BaseURL, "/") + u.remote.MembersPath
	if u.remote.OnConflict != "" {
		endpoint += "?on_conflict=" + url.QueryEscape(u.remote.OnConflict)
	}
	return endpoint
}

func (u *Uploader) reportProgress(o model.UploadOutcome, total int) {
	switch o.Kind {
	case model.Created:
		fmt.Fprintf(u.progress, "[%d/%d] Added: %s\n", o.Sequence, total, o.Email)
	case model.Skipped:
		fmt.Fprintf(u.progress, "[%d/%d] Skipped (exists): %s\n", o.Sequence, total, o.Email)
	default:
		fmt.Fprintf(u.progress, "[%d/%d] Error: %s - %s\n", o.Sequence, total, o.Email, o.Reason)
	}
}
