package integrationtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/extractor"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/model"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/service"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/uploader"
	pkgmodel "gitlab.com/dirk.krummacker/contacts-sync/pkg/model"
)

const apiKey = "integration-key"

// startMemberStore connects the member store to the database named by the environment and serves
// it on a local port. The test is skipped when no database is configured.
func startMemberStore(t *testing.T) *config.Config {
	if os.Getenv("DBHOST") == "" {
		t.Skip("DBHOST not set, skipping integration test")
	}
	cfg, err := config.LoadFromEnv("")
	require.NoError(t, err)

	sqlDB, err := service.CreateDatabase(cfg.Store)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, service.SetupDatabaseWrapper(sqlDB, cfg.Store.Driver))

	gin.SetMode(gin.ReleaseMode)
	server := httptest.NewServer(service.SetupHttpRouter(apiKey))
	t.Cleanup(server.Close)

	cfg.Remote.BaseURL = server.URL
	cfg.Remote.APIKey = apiKey
	return cfg
}

// deleteMember looks up the member with the given email and deletes it.
func deleteMember(t *testing.T, baseURL, email string) {
	req, _ := http.NewRequest(http.MethodGet, baseURL+"/rest/v1/members?email="+url.QueryEscape(email), nil)
	req.Header.Set("apikey", apiKey)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var members []pkgmodel.Member
	require.NoError(t, json.NewDecoder(res.Body).Decode(&members))

	for _, m := range members {
		del, _ := http.NewRequest(http.MethodDelete, baseURL+"/rest/v1/members/"+m.Id, nil)
		del.Header.Set("apikey", apiKey)
		delRes, err := http.DefaultClient.Do(del)
		require.NoError(t, err)
		delRes.Body.Close()
		assert.Equal(t, http.StatusOK, delRes.StatusCode)
	}
}

// TestSyncTwice extracts an address book export, uploads it into the member store and repeats the
// upload. The second run must not create any member.
func TestSyncTwice(t *testing.T) {
	cfg := startMemberStore(t)

	run := uuid.NewString()[:8]
	alice := fmt.Sprintf("alice.%s@x.com", run)
	bob := fmt.Sprintf("bob.%s@x.com", run)
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"First Name,Last Name,Email 1,Email 2,Phone 1\n"+
			"Alice,Smith,"+alice+",,'5550001\n"+
			",,,"+bob+",\n"+
			"Nobody,,,,\n"), 0o600))
	t.Cleanup(func() {
		deleteMember(t, cfg.Remote.BaseURL, alice)
		deleteMember(t, cfg.Remote.BaseURL, bob)
	})

	records, stats, err := extractor.ReadAll(path, cfg.Source)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, stats.Skipped)

	first := uploader.New(cfg.Remote, cfg.Membership).Upload(context.Background(), records)
	assert.Equal(t, 2, first.Created, "%+v", first.Failures())
	assert.Equal(t, 0, first.Failed)

	second := uploader.New(cfg.Remote, cfg.Membership).Upload(context.Background(), records)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Skipped)
	for _, o := range second.Outcomes {
		assert.Equal(t, model.Skipped, o.Kind)
		assert.Equal(t, http.StatusConflict, o.Status)
	}
}
