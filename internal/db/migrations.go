// internal/db/migrations.go
package db

import (
	"fmt"

	"gorm.io/gorm"
)

const (
	IndexIrdNameAdminIP     = "ux_irds_name_admin_ip"
	IndexEquipmentIrdRef    = "ux_equipment_ird_ref"
	IndexEquipmentMgmtIP    = "ux_equipment_management_ip" // legacy, management IP is no longer unique
	IndexEquipmentTypeLower = "ux_equipment_types_name_lower"
	IndexContactName        = "ux_contacts_name"
	IndexContactEmail       = "ux_contacts_email"
	IndexContactPhone       = "ux_contacts_phone"
)

// MigrateEquipmentIndexes drops the legacy unique index on management_ip
// (when dropLegacy) and makes sure ird_id is unique wherever it is set.
// Run after AutoMigrate.
func MigrateEquipmentIndexes(db *gorm.DB, dropLegacy bool) error {
	if db == nil {
		return nil
	}
	dialect := db.Dialector.Name()

	if dropLegacy && db.Migrator().HasIndex("equipment", IndexEquipmentMgmtIP) {
		if err := db.Migrator().DropIndex("equipment", IndexEquipmentMgmtIP); err != nil {
			return fmt.Errorf("drop %s: %w", IndexEquipmentMgmtIP, err)
		}
	}
	if db.Migrator().HasIndex("equipment", IndexEquipmentIrdRef) {
		return nil
	}

	switch dialect {
	case "mysql":
		// NULL в unique-индексе MySQL не конфликтует
		return db.Exec("CREATE UNIQUE INDEX `ux_equipment_ird_ref` ON `equipment` (`ird_id`)").Error

	case "postgres":
		// partial unique index: ссылка уникальна только когда она есть
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_equipment_ird_ref ON "equipment" ("ird_id") WHERE "ird_id" IS NOT NULL`).Error

	case "sqlite":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_equipment_ird_ref ON equipment (ird_id) WHERE ird_id IS NOT NULL`).Error

	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
