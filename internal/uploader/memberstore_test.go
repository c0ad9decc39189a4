package uploader

import (
	"context"
	"database/sql/driver"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/model"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/service"
)

// startMemberStore runs the member store on top of a mock database and returns its base URL.
func startMemberStore(t *testing.T) (string, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPrepare("INSERT INTO members")
	mock.ExpectPrepare("ON DUPLICATE KEY UPDATE")
	mock.ExpectPrepare("SELECT .* FROM members WHERE id")
	mock.ExpectPrepare("DELETE FROM members WHERE id")
	require.NoError(t, service.SetupDatabaseWrapper(db, "mysql"))

	gin.SetMode(gin.ReleaseMode)
	server := httptest.NewServer(service.SetupHttpRouter("service-key"))
	t.Cleanup(server.Close)
	return server.URL, mock
}

// TestSecondRunSkipsExistingMember uploads the same contact in two runs against the member store.
// The first run creates the member, the second one reports it as already existing.
func TestSecondRunSkipsExistingMember(t *testing.T) {
	baseURL, mock := startMemberStore(t)
	alice := model.ContactRecord{Email: "alice@x.com", FullName: "Alice Smith", FirstName: "Alice", PhoneNumber: ptr("5550001")}

	insertArgs := []driver.Value{
		sqlmock.AnyArg(), "alice@x.com", "password123", "Alice Smith", "Alice", "5550001",
		"CUC-2024-0001", "Full Membership", "2024-05-01", "2026-12-31", true,
	}
	mock.ExpectExec("INSERT INTO members").
		WithArgs(insertArgs...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO members").
		WithArgs(insertArgs...).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice@x.com' for key 'members.email'"})

	first := newTestUploader(baseURL).Upload(context.Background(), []model.ContactRecord{alice})
	second := newTestUploader(baseURL).Upload(context.Background(), []model.ContactRecord{alice})

	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, first.Skipped)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Failed)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestMemberStoreRejectsWrongKey expects that an upload with the wrong key fails for every contact.
func TestMemberStoreRejectsWrongKey(t *testing.T) {
	baseURL, mock := startMemberStore(t)

	u := newTestUploader(baseURL)
	u.remote.APIKey = "wrong-key"
	summary := u.Upload(context.Background(), contacts(2))

	assert.Equal(t, 2, summary.Failed)
	assert.Contains(t, summary.Outcomes[0].Reason, "401 Unauthorized")
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
