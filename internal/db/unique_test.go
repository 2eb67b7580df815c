package db_test

import (
	"errors"
	"fmt"
	"testing"

	"irdinv/internal/db"
	"irdinv/internal/dbtest"
	"irdinv/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsUniqueViolationPostgres(t *testing.T) {
	err := fmt.Errorf("create: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: db.IndexIrdNameAdminIP,
		Detail:         "Key (name_lower, admin_ip, import_key)=(ird-1, 10.0.0.5, ) already exists.",
	})
	u, ok := db.AsUniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, db.IndexIrdNameAdminIP, u.Index)
	assert.Equal(t, []string{"name_lower", "admin_ip", "import_key"}, u.Columns)

	_, ok = db.AsUniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
}

func TestAsUniqueViolationMySQL(t *testing.T) {
	err := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '42' for key 'equipment.ux_equipment_ird_ref'"}
	u, ok := db.AsUniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, db.IndexEquipmentIrdRef, u.Index)
	assert.True(t, u.Has("ird_id"))
}

func TestAsUniqueViolationSQLite(t *testing.T) {
	g := dbtest.Open(t)
	require.NoError(t, g.Create(&models.EquipmentType{Name: "IRD"}).Error)
	err := g.Create(&models.EquipmentType{Name: " ird "}).Error

	u, ok := db.AsUniqueViolation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, []string{"name_lower"}, u.Columns)
}

func TestAsUniqueViolationIgnoresOtherErrors(t *testing.T) {
	_, ok := db.AsUniqueViolation(errors.New("connection refused"))
	assert.False(t, ok)
	_, ok = db.AsUniqueViolation(nil)
	assert.False(t, ok)
}

func TestUniqueViolationFields(t *testing.T) {
	u := &db.UniqueViolation{Columns: []string{"name_lower", "admin_ip", "import_key"}}
	got := u.Fields(map[string]string{"name_lower": "name", "admin_ip": "adminIp", "import_key": ""})
	assert.Equal(t, []string{"name", "adminIp"}, got)
}
