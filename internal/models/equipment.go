package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var folder = cases.Lower(language.Und)

// NormalizeKey возвращает каноничный ключ имени (trim + lower).
func NormalizeKey(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// EquipmentType: категория оборудования ("ird", "switch", ...).
type EquipmentType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	NameLower string    `gorm:"size:255;not null;uniqueIndex:ux_equipment_types_name_lower" json:"nameLower"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeSave keeps NameLower derived from Name on every write.
func (t *EquipmentType) BeforeSave(_ *gorm.DB) error {
	t.Name = strings.TrimSpace(t.Name)
	t.NameLower = NormalizeKey(t.Name)
	return nil
}

// Equipment is the generic inventory row. IrdID links it back to the Ird
// that owns it; at most one Equipment may point at a given Ird.
type Equipment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Brand           string         `gorm:"size:255;not null" json:"brand"`
	Model           string         `gorm:"size:255;not null" json:"model"`
	EquipmentTypeID uint           `gorm:"not null;index" json:"equipmentTypeRef"`
	EquipmentType   *EquipmentType `gorm:"foreignKey:EquipmentTypeID" json:"equipmentType,omitempty"`
	ManagementIP    *string        `gorm:"column:management_ip;size:45;index" json:"managementIp"` // не unique: bulk может повторять IP
	SatelliteID     *uint          `gorm:"index" json:"satelliteRef"`
	IrdID           *uint          `gorm:"uniqueIndex:ux_equipment_ird_ref" json:"irdRef"`
	Ird             *Ird           `gorm:"foreignKey:IrdID" json:"ird,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (Equipment) TableName() string { return "equipment" }

func (e *Equipment) BeforeSave(_ *gorm.DB) error {
	e.Name = strings.TrimSpace(e.Name)
	e.Brand = strings.TrimSpace(e.Brand)
	e.Model = strings.TrimSpace(e.Model)
	if e.ManagementIP != nil {
		ip := strings.TrimSpace(*e.ManagementIP)
		if ip == "" {
			e.ManagementIP = nil
		} else {
			e.ManagementIP = &ip
		}
	}
	return nil
}
