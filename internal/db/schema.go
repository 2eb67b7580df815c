package db

import (
	"fmt"

	"irdinv/internal/models"

	"gorm.io/gorm"
)

// Models: все таблицы сервиса в порядке миграции.
func Models() []any {
	return []any{
		&models.EquipmentType{},
		&models.Ird{},
		&models.Equipment{},
		&models.Contact{},
	}
}

// Migrate brings the schema up to date: legacy renames, AutoMigrate, then
// index fixes that AutoMigrate cannot express.
func Migrate(db *gorm.DB, dropLegacyIndexes bool) error {
	if err := MigrateLegacyColumns(db); err != nil {
		return fmt.Errorf("legacy columns: %w", err)
	}
	if err := backfillIrdNameLower(db); err != nil {
		return fmt.Errorf("irds.name_lower: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := MigrateEquipmentIndexes(db, dropLegacyIndexes); err != nil {
		return fmt.Errorf("equipment indexes: %w", err)
	}
	return nil
}

// backfillIrdNameLower adds name_lower to a legacy irds table and fills it
// before AutoMigrate builds the unique index over it.
func backfillIrdNameLower(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&models.Ird{}) || m.HasColumn(&models.Ird{}, "name_lower") {
		return nil
	}
	if err := m.AddColumn(&models.Ird{}, "NameLower"); err != nil {
		return err
	}
	return db.Exec("UPDATE irds SET name_lower = LOWER(TRIM(name))").Error
}
