package db_test

import (
	"path/filepath"
	"testing"

	"irdinv/internal/db"
	"irdinv/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func rawSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	g, err := db.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	g.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := g.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return g
}

func TestMigrateRenamesLegacyColumns(t *testing.T) {
	g := rawSQLite(t)
	require.NoError(t, g.Exec(`CREATE TABLE irds (id integer PRIMARY KEY AUTOINCREMENT, nombre_ird text NOT NULL, ip_admin_ird text NOT NULL)`).Error)
	require.NoError(t, g.Exec(`INSERT INTO irds (nombre_ird, ip_admin_ird) VALUES ('IRD-OLD', '10.1.1.1')`).Error)
	require.NoError(t, g.Exec(`CREATE TABLE equipment (id integer PRIMARY KEY AUTOINCREMENT, nombre text NOT NULL, marca text NOT NULL, modelo text NOT NULL, tipo_nombre integer NOT NULL, ip_gestion text)`).Error)
	require.NoError(t, g.Exec(`INSERT INTO equipment (nombre, marca, modelo, tipo_nombre, ip_gestion) VALUES ('eq', 'b', 'm', 1, '10.1.1.1')`).Error)

	require.NoError(t, db.Migrate(g, true))

	m := g.Migrator()
	assert.False(t, m.HasColumn("irds", "nombre_ird"))
	assert.False(t, m.HasColumn("equipment", "ip_gestion"))

	var ird models.Ird
	require.NoError(t, g.First(&ird).Error)
	assert.Equal(t, "IRD-OLD", ird.Name)
	assert.Equal(t, "10.1.1.1", ird.AdminIP)

	var e models.Equipment
	require.NoError(t, g.First(&e).Error)
	assert.Equal(t, "eq", e.Name)
	assert.EqualValues(t, 1, e.EquipmentTypeID)
	require.NotNil(t, e.ManagementIP)
	assert.Equal(t, "10.1.1.1", *e.ManagementIP)

	// повторный запуск ничего не ломает
	require.NoError(t, db.Migrate(g, true))
}

func TestMigrateDropsLegacyManagementIPIndex(t *testing.T) {
	g := rawSQLite(t)
	require.NoError(t, db.Migrate(g, true))
	require.NoError(t, g.Exec("CREATE UNIQUE INDEX "+db.IndexEquipmentMgmtIP+" ON equipment(management_ip)").Error)

	require.NoError(t, db.Migrate(g, false))
	assert.True(t, g.Migrator().HasIndex("equipment", db.IndexEquipmentMgmtIP))

	require.NoError(t, db.Migrate(g, true))
	assert.False(t, g.Migrator().HasIndex("equipment", db.IndexEquipmentMgmtIP))
	assert.True(t, g.Migrator().HasIndex("equipment", db.IndexEquipmentIrdRef))
}
