package authz

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"inbox-service/internal/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqldb,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func userRoleRows(userID uint, role string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "role"}).AddRow(1, userID, role)
}

func membershipRows(userID, clientID uint, role string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "client_id", "role"}).AddRow(1, userID, clientID, role)
}

func TestResolveRoleGlobalAdminWins(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(userRoleRows(1, model.RoleAdmin))

	role, err := ResolveRole(db, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveRoleFallsBackToMembership(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role"}))
	mock.ExpectQuery(`SELECT \* FROM "memberships"`).
		WillReturnRows(membershipRows(2, 7, model.RoleAgent))

	role, err := ResolveRole(db, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAgent, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveRoleNoAccess(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role"}))
	mock.ExpectQuery(`SELECT \* FROM "memberships"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "client_id", "role"}))

	role, err := ResolveRole(db, 3, 7)
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestCanViewAnyRole(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role"}))
	mock.ExpectQuery(`SELECT \* FROM "memberships"`).
		WillReturnRows(membershipRows(2, 7, model.RoleAgent))

	allowed, err := CanView(db, 2, 7)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCanManageRejectsAgent(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role"}))
	mock.ExpectQuery(`SELECT \* FROM "memberships"`).
		WillReturnRows(membershipRows(2, 7, model.RoleAgent))

	allowed, err := CanManage(db, 2, 7)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCanManageAllowsOwner(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role"}))
	mock.ExpectQuery(`SELECT \* FROM "memberships"`).
		WillReturnRows(membershipRows(4, 7, model.RoleOwner))

	allowed, err := CanManage(db, 4, 7)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIsGlobalAdmin(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(userRoleRows(5, model.RoleAdmin))

	admin, err := IsGlobalAdmin(db, 5)
	require.NoError(t, err)
	assert.True(t, admin)
}

func TestIsGlobalAdminNotGranted(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "user_roles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role"}))

	admin, err := IsGlobalAdmin(db, 6)
	require.NoError(t, err)
	assert.False(t, admin)
}
