package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:ux_contacts_name" json:"name"`
	Email     *string   `gorm:"size:255;uniqueIndex:ux_contacts_email" json:"email,omitempty"`
	Phone     *string   `gorm:"size:64;uniqueIndex:ux_contacts_phone" json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeSave trims fields; blank optional values become NULL so the unique
// indexes only apply to values that are actually present.
func (c *Contact) BeforeSave(_ *gorm.DB) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = blankToNil(c.Email)
	c.Phone = blankToNil(c.Phone)
	return nil
}

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}
