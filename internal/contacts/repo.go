// Package contacts is plain CRUD over the contact directory.
package contacts

import (
	"errors"

	"irdinv/internal/models"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) with(tx *gorm.DB) *Repo { return &Repo{db: tx} }

func (r *Repo) List() ([]models.Contact, error) {
	var out []models.Contact
	err := r.db.Order("name").Find(&out).Error
	return out, err
}

func (r *Repo) Get(id uint) (*models.Contact, error) {
	var c models.Contact
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) Create(c *models.Contact) error { return r.db.Create(c).Error }
func (r *Repo) Save(c *models.Contact) error   { return r.db.Save(c).Error }

// Delete returns false when there was no such contact.
func (r *Repo) Delete(id uint) (bool, error) {
	tx := r.db.Delete(&models.Contact{}, id)
	return tx.RowsAffected > 0, tx.Error
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
