package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/extractor"
)

const export = "First Name,Last Name,Email 1,Email 2,Phone 1\n" +
	"Alice,Smith,alice@x.com,,'5550001\n" +
	"Bob,,,bob@x.com,\n" +
	"Nobody,,,,\n"

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the root command with the given arguments and stdin and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	configPath, sourcePath, assumeYes = "", "", false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPreview(t *testing.T) {
	out, err := execute(t, "", "preview", "--csv", writeExport(t, export))
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 valid email addresses (1 rows without one skipped)")
	assert.Contains(t, out, "  1. alice@x.com - Alice Smith\n")
	assert.Contains(t, out, "  2. bob@x.com - Bob\n")
}

func TestUploadWithoutSource(t *testing.T) {
	t.Setenv("MEMBERS_API_URL", "http://members.test")
	t.Setenv("MEMBERS_API_KEY", "key")
	_, err := execute(t, "", "upload")
	assert.ErrorContains(t, err, "no address book export given")
}

// TestUploadStopsOnUnreadableSource expects that nothing is sent when the export cannot be read.
func TestUploadStopsOnUnreadableSource(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()
	t.Setenv("MEMBERS_API_URL", server.URL)
	t.Setenv("MEMBERS_API_KEY", "key")

	sources := map[string]string{
		"missing file":    filepath.Join(t.TempDir(), "missing.csv"),
		"empty file":      writeExport(t, ""),
		"no email column": writeExport(t, "First Name,Last Name\nAlice,Smith\n"),
	}
	for name, path := range sources {
		_, err := execute(t, "", "upload", "--yes", "--csv", path)
		assert.ErrorIs(t, err, extractor.ErrSourceRead, name)
	}
	assert.Equal(t, 0, calls)
}

func TestUploadAbortsWithoutEmails(t *testing.T) {
	t.Setenv("MEMBERS_API_URL", "http://members.test")
	t.Setenv("MEMBERS_API_KEY", "key")
	_, err := execute(t, "", "upload", "--yes", "--csv", writeExport(t, "First Name,Email 1\nNobody,\n"))
	assert.ErrorContains(t, err, "no valid email addresses found")
}

func TestUploadCancelled(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()
	t.Setenv("MEMBERS_API_URL", server.URL)
	t.Setenv("MEMBERS_API_KEY", "key")

	out, err := execute(t, "n\n", "upload", "--csv", writeExport(t, export))
	require.NoError(t, err)
	assert.Contains(t, out, "default password: password123")
	assert.Contains(t, out, "Upload 2 contacts? (y/n)")
	assert.Contains(t, out, "Upload cancelled")
	assert.Equal(t, 0, calls)
}

func TestUploadConfirmed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()
	t.Setenv("MEMBERS_API_URL", server.URL)
	t.Setenv("MEMBERS_API_KEY", "key")

	out, err := execute(t, "y\n", "upload", "--csv", writeExport(t, export))
	require.NoError(t, err)
	assert.Contains(t, out, "[1/2] Added: alice@x.com")
	assert.Contains(t, out, "[2/2] Added: bob@x.com")
	assert.Contains(t, out, "   Success: 2\n")
}

func TestUploadReportsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()
	t.Setenv("MEMBERS_API_URL", server.URL)
	t.Setenv("MEMBERS_API_KEY", "key")

	out, err := execute(t, "", "upload", "--yes", "--csv", writeExport(t, export))
	assert.ErrorContains(t, err, "2 of 2 contacts could not be uploaded")
	assert.Contains(t, out, "   Errors: 2\n")
	assert.Contains(t, out, "Failed contacts:")
}
