package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const DefaultIrdImageURL = "https://i.ibb.co/pvW06r6K/ird-motorola.png"

// IrdSpec: описательные поля IRD, общие для API, Excel-импорта и таблицы.
type IrdSpec struct {
	Name    string `gorm:"size:255;not null" json:"name"`
	AdminIP string `gorm:"column:admin_ip;size:45;not null;uniqueIndex:ux_irds_name_admin_ip,priority:2" json:"adminIp"`

	ImageURL     string `gorm:"size:512" json:"imageUrl"`
	Brand        string `gorm:"size:255" json:"brand"`
	Model        string `gorm:"size:255" json:"model"`
	Version      string `gorm:"size:255" json:"version"`
	UA           string `gorm:"column:ua;size:255" json:"ua"`
	TID          string `gorm:"column:tid;size:255" json:"tid"`
	ReceptorType string `gorm:"size:255" json:"receptorType"`
	Frequency    string `gorm:"size:255" json:"frequency"`
	SymbolRate   string `gorm:"size:255" json:"symbolRate"`
	FEC          string `gorm:"column:fec;size:255" json:"fec"`
	Modulation   string `gorm:"size:255" json:"modulation"`
	RollOff      string `gorm:"size:255" json:"rollOff"`
	NID          string `gorm:"column:nid;size:255" json:"nid"`
	VirtualChan  string `gorm:"column:virtual_channel;size:255" json:"virtualChannel"`
	VCT          string `gorm:"column:vct;size:255" json:"vct"`
	Output       string `gorm:"size:255" json:"output"`
	Multicast    string `gorm:"size:255" json:"multicast"`
	VideoMcastIP string `gorm:"column:video_multicast_ip;size:255" json:"videoMulticastIp"`
	LocationRow  string `gorm:"size:64" json:"locationRow"`
	LocationCol  string `gorm:"size:64" json:"locationCol"`
	SwitchAdmin  string `gorm:"size:255" json:"switchAdmin"`
	SwitchPort   string `gorm:"size:64" json:"switchPort"`
}

// Ird: конфигурация приёмника.
//
// The (NameLower, AdminIP, ImportKey) unique index makes (lower(name), adminIp)
// unique among records created one at a time (ImportKey == ""); bulk-imported
// rows get their own ImportKey and may repeat the pair.
type Ird struct {
	ID uint `gorm:"primaryKey" json:"id"`
	IrdSpec
	NameLower string    `gorm:"size:255;not null;default:'';uniqueIndex:ux_irds_name_admin_ip,priority:1" json:"-"`
	ImportKey string    `gorm:"size:36;not null;default:'';uniqueIndex:ux_irds_name_admin_ip,priority:3" json:"importKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i *Ird) BeforeSave(_ *gorm.DB) error {
	i.Name = strings.TrimSpace(i.Name)
	i.AdminIP = strings.TrimSpace(i.AdminIP)
	i.NameLower = NormalizeKey(i.Name)
	if i.ImageURL == "" {
		i.ImageURL = DefaultIrdImageURL
	}
	return nil
}
