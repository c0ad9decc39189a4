package service

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/config"
	"gitlab.com/dirk.krummacker/contacts-sync/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-sync/pkg/model"
)

// maxInt is the largest possible int value
const maxInt = int(^uint(0) >> 1)

// memberColumns lists the columns that make up a model.Member.
const memberColumns = `id, email, password_hash, full_name, first_name, phone_number,
	membership_number, membership_type, member_since, member_until, is_active`

// db is a handle to the database.
var db *sqlx.DB

// insert is a prepared statement for creating a member on the database.
var insert *sqlx.NamedStmt

// insertOrKeep is a prepared statement for creating a member that leaves an existing member with
// the same email untouched.
var insertOrKeep *sqlx.NamedStmt

// selectWhereId is a prepared statement for selecting members with a given id.
var selectWhereId *sqlx.Stmt

// deleteWhereId is a prepared statement for deleting a member with a given id.
var deleteWhereId *sqlx.Stmt

// apiKey is the key clients have to present in the apikey header. Empty disables the check.
var apiKey string

// CreateDatabase opens a database connection for the configured driver, "mysql" or "postgres".
func CreateDatabase(store config.StoreConfig) (*sql.DB, error) {
	switch store.Driver {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = store.User
		cfg.Passwd = store.Password
		cfg.Net = "tcp"
		cfg.Addr = store.Host
		cfg.DBName = store.Name
		return sql.Open("mysql", cfg.FormatDSN())
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			store.Host, store.User, store.Password, store.Name)
		return sql.Open("postgres", dsn)
	}
	return nil, fmt.Errorf("unsupported database driver %q", store.Driver)
}

// SetupDatabaseWrapper initializes the sqlx database wrapper with the specified sql database. It
// then prepares all statements. The database argument can be a real database for production use
// or a mock database within unit tests.
func SetupDatabaseWrapper(sqlDB *sql.DB, driver string) error {
	var err error
	db = sqlx.NewDb(sqlDB, driver)

	// Prepared statements offer a significant speed increase if executed many times.
	insertSQL := `
		INSERT INTO members (` + memberColumns + `)
		VALUES (:id, :email, :password_hash, :full_name, :first_name, :phone_number,
			:membership_number, :membership_type, :member_since, :member_until, :is_active)`
	insert, err = db.PrepareNamed(insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	keepClause := " ON DUPLICATE KEY UPDATE email = email"
	if driver == "postgres" {
		keepClause = " ON CONFLICT (email) DO NOTHING"
	}
	insertOrKeep, err = db.PrepareNamed(insertSQL + keepClause)
	if err != nil {
		return fmt.Errorf("prepare insert or keep: %w", err)
	}
	selectWhereId, err = db.Preparex(db.Rebind(`
		SELECT ` + memberColumns + ` FROM members WHERE id = ?
	`))
	if err != nil {
		return fmt.Errorf("prepare select: %w", err)
	}
	deleteWhereId, err = db.Preparex(db.Rebind(`
		DELETE FROM members WHERE id = ?
	`))
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	return nil
}

// SetupHttpRouter initializes the REST API router and registers all endpoints. Requests have to
// carry the given key in their apikey header unless key is empty.
func SetupHttpRouter(key string) *gin.Engine {
	apiKey = key
	var router *gin.Engine
	if strings.EqualFold(os.Getenv("GIN_LOGGING"), "off") {
		fmt.Println("Turning off HTTP request logging.")
		router = gin.New()
		router.Use(gin.Recovery())
	} else {
		router = gin.Default()
	}
	members := router.Group("/rest/v1/members", requireAPIKey)
	members.GET("", findMembers)
	members.POST("", createMember)
	members.GET("/:id", findMemberByID)
	members.DELETE("/:id", deleteMemberByID)
	return router
}

// requireAPIKey rejects requests without the configured API key.
func requireAPIKey(c *gin.Context) {
	if apiKey == "" {
		return
	}
	if subtle.ConstantTimeCompare([]byte(c.GetHeader("apikey")), []byte(apiKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid api key"})
	}
}

// findMembers responds with a list of members as JSON, sorted by membership number.
//
// The URL parameter 'email' restricts the result to the member with that email. The PostgREST
// form 'eq.<email>' is accepted as well. The URL parameters 'limit' and 'offset' page through the
// result.
//
// REST API calls:
//
//	> curl -H "apikey: $KEY" "http://localhost:8080/rest/v1/members"
//	> curl -H "apikey: $KEY" "http://localhost:8080/rest/v1/members?email=eq.alice@x.com"
//	> curl -H "apikey: $KEY" "http://localhost:8080/rest/v1/members?limit=20&offset=60"
func findMembers(c *gin.Context) {
	limit, offset, success := parseLimitAndOffset(c)
	if !success {
		return
	}
	members := []model.Member{}
	var err error
	if email := strings.TrimPrefix(c.Query("email"), "eq."); email != "" {
		err = db.Select(&members, db.Rebind(`
			SELECT `+memberColumns+`
			FROM members
			WHERE email = ?
			ORDER BY membership_number, email
			LIMIT ?
			OFFSET ?`), email, limit, offset)
	} else {
		err = db.Select(&members, db.Rebind(`
			SELECT `+memberColumns+`
			FROM members
			ORDER BY membership_number, email
			LIMIT ?
			OFFSET ?`), limit, offset)
	}
	if err != nil {
		respondInternalError(c, "select members", err)
		return
	}
	c.IndentedJSON(http.StatusOK, members)
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set.
func parseLimitAndOffset(c *gin.Context) (limit int, offset int, success bool) {
	limit, offset = maxInt, 0
	if v := c.Query("limit"); v != "" {
		l, errConv := strconv.Atoi(v)
		if errConv != nil || l < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
		limit = l
	}
	if v := c.Query("offset"); v != "" {
		o, errConv := strconv.Atoi(v)
		if errConv != nil || o < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid offset parameter"})
			return 0, 0, false
		}
		offset = o
	}
	return limit, offset, true
}

// createMember inserts the member specified in the request's JSON into the database. It responds
// with the stored member including the newly assigned id.
//
// Email is the natural key of a member. A request for an email that is already taken is answered
// with 409 Conflict, unless the request carries the header 'Prefer: resolution=merge-duplicates'
// and the URL parameter 'on_conflict=email'. Then the existing member is kept as it is and the
// request is answered with 200 OK.
//
// Example REST API call:
//
//	> curl http://localhost:8080/rest/v1/members --request "POST" --include --header "apikey: $KEY" --header "Content-Type: application/json" --data '{"email": "alice@x.com", "password_hash": "password123", "full_name": "Alice Smith", "first_name": "Alice", "membership_number": "CUC-2024-0001", "member_since": "2024-05-01"}'
func createMember(c *gin.Context) {
	var request model.MemberRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	member, err := newMember(request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	onConflict := c.Query("on_conflict")
	if onConflict != "" && onConflict != "email" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "unsupported on_conflict column"})
		return
	}

	if onConflict == "email" && mergeRequested(c.GetHeader("Prefer")) {
		result, err := insertOrKeep.Exec(&member)
		if err != nil {
			respondInternalError(c, "insert or keep member", err)
			return
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			respondInternalError(c, "insert or keep member", err)
			return
		}
		if rowsAffected == 0 {
			c.IndentedJSON(http.StatusOK, gin.H{"message": "member already exists"})
			return
		}
		c.IndentedJSON(http.StatusCreated, member)
		return
	}

	if _, err := insert.Exec(&member); err != nil {
		if isDuplicateKey(err) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    "23505",
				"message": "duplicate key value violates unique constraint on email",
			})
			return
		}
		respondInternalError(c, "insert member", err)
		return
	}
	c.IndentedJSON(http.StatusCreated, member)
}

// newMember validates a creation request and turns it into a member with a fresh id.
func newMember(request model.MemberRequest) (model.Member, error) {
	switch {
	case !strings.Contains(request.Email, "@"):
		return model.Member{}, errors.New("invalid email")
	case request.PasswordHash == "":
		return model.Member{}, errors.New("password_hash is required")
	case request.FullName == "":
		return model.Member{}, errors.New("full_name is required")
	case request.FirstName == "":
		return model.Member{}, errors.New("first_name is required")
	case request.MembershipNumber == "":
		return model.Member{}, errors.New("membership_number is required")
	}
	if _, err := time.Parse(config.DateLayout, request.MemberSince); err != nil {
		return model.Member{}, errors.New("member_since must be a YYYY-MM-DD date")
	}
	if request.MemberUntil != nil {
		if _, err := time.Parse(config.DateLayout, *request.MemberUntil); err != nil {
			return model.Member{}, errors.New("member_until must be a YYYY-MM-DD date")
		}
	}

	member := model.Member{
		Id:               uuid.NewString(),
		Email:            request.Email,
		PasswordHash:     request.PasswordHash,
		FullName:         request.FullName,
		FirstName:        request.FirstName,
		PhoneNumber:      request.PhoneNumber,
		MembershipNumber: request.MembershipNumber,
		MembershipType:   request.MembershipType,
		MemberSince:      request.MemberSince,
		MemberUntil:      request.MemberUntil,
		IsActive:         true,
	}
	if member.MembershipType == "" {
		member.MembershipType = "Full Membership"
	}
	if request.IsActive != nil {
		member.IsActive = *request.IsActive
	}
	return member, nil
}

// mergeRequested reports whether a Prefer header asks for duplicates to be merged.
func mergeRequested(prefer string) bool {
	for _, p := range strings.Split(prefer, ",") {
		if strings.TrimSpace(p) == "resolution=merge-duplicates" {
			return true
		}
	}
	return false
}

// isDuplicateKey reports whether err is a unique constraint violation of MySQL or Postgres.
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// findMemberByID locates the member whose ID value matches the id parameter of the request URL,
// then returns that member as a response.
//
// Example REST API call:
//
//	> curl -H "apikey: $KEY" http://localhost:8080/rest/v1/members/0b0c7d2e-6a43-4a8e-9d55-3a5c1f1e2b10
func findMemberByID(c *gin.Context) {
	id := c.Param("id")
	if _, errParse := uuid.Parse(id); errParse != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return
	}

	var members []model.Member
	if err := selectWhereId.Select(&members, id); err != nil {
		respondInternalError(c, "select member", err)
		return
	}
	if len(members) == 0 {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "member not found"})
	} else {
		c.IndentedJSON(http.StatusOK, members[0])
	}
}

// deleteMemberByID deletes the member whose ID value matches the id parameter of the request URL
// from the database.
//
// Example REST API call:
//
//	> curl -H "apikey: $KEY" http://localhost:8080/rest/v1/members/0b0c7d2e-6a43-4a8e-9d55-3a5c1f1e2b10 --request "DELETE"
func deleteMemberByID(c *gin.Context) {
	id := c.Param("id")
	if _, errParse := uuid.Parse(id); errParse != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return
	}

	result, err := deleteWhereId.Exec(id)
	if err != nil {
		respondInternalError(c, "delete member", err)
		return
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		respondInternalError(c, "delete member", err)
		return
	}
	if rowsAffected == 1 {
		c.IndentedJSON(http.StatusOK, gin.H{"message": "member deleted"})
	} else {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "member not found"})
	}
}

func respondInternalError(c *gin.Context, op string, err error) {
	logger.Error("database operation failed", "op", op, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}
