package repo

import (
	"errors"

	"irdinv/internal/models"

	"gorm.io/gorm"
)

// Store: доступ к EquipmentType/Equipment/Ird. Every method runs on the
// session it was bound to, so the same Store works inside and outside a
// transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// With binds the store to a session (usually a transaction handle).
func (s *Store) With(tx *gorm.DB) *Store { return &Store{db: tx} }

// IsNotFound reports a missing row.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// ── Ird ─────────────────────────────────────────────────────

func (s *Store) CreateIrd(m *models.Ird) error { return s.db.Create(m).Error }
func (s *Store) SaveIrd(m *models.Ird) error   { return s.db.Save(m).Error }

func (s *Store) FindIrd(id uint) (*models.Ird, error) {
	var m models.Ird
	if err := s.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListIrds() ([]models.Ird, error) {
	var out []models.Ird
	err := s.db.Order("admin_ip").Order("id").Find(&out).Error
	return out, err
}

// DeleteIrd returns false when there was no such row.
func (s *Store) DeleteIrd(id uint) (bool, error) {
	tx := s.db.Delete(&models.Ird{}, id)
	return tx.RowsAffected > 0, tx.Error
}

// ── Equipment ───────────────────────────────────────────────

func (s *Store) CreateEquipment(m *models.Equipment) error { return s.db.Create(m).Error }
func (s *Store) SaveEquipment(m *models.Equipment) error   { return s.db.Save(m).Error }

func (s *Store) DeleteEquipment(id uint) error {
	return s.db.Delete(&models.Equipment{}, id).Error
}

func (s *Store) FindEquipment(id uint) (*models.Equipment, error) {
	var m models.Equipment
	if err := s.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) FindEquipmentByIrd(irdID uint) (*models.Equipment, error) {
	var m models.Equipment
	if err := s.db.Where("ird_id = ?", irdID).Order("id").First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) FindEquipmentByManagementIP(ip string) (*models.Equipment, error) {
	var m models.Equipment
	if err := s.db.Where("management_ip = ?", ip).Order("id").First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) CountEquipmentByIrd(irdID uint) (int64, error) {
	var n int64
	err := s.db.Model(&models.Equipment{}).Where("ird_id = ?", irdID).Count(&n).Error
	return n, err
}

// DetachEquipment clears ird_id on every row linked to irdID, except the row
// with id keep (0 = none).
func (s *Store) DetachEquipment(irdID, keep uint) (int64, error) {
	q := s.db.Session(&gorm.Session{SkipHooks: true}).
		Model(&models.Equipment{}).
		Where("ird_id = ?", irdID)
	if keep != 0 {
		q = q.Where("id <> ?", keep)
	}
	tx := q.Update("ird_id", gorm.Expr("NULL"))
	return tx.RowsAffected, tx.Error
}

// LoadEquipment returns the row with its type and Ird populated.
func (s *Store) LoadEquipment(id uint) (*models.Equipment, error) {
	var m models.Equipment
	err := s.db.Preload("EquipmentType").Preload("Ird").First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListEquipment() ([]models.Equipment, error) {
	var out []models.Equipment
	err := s.db.Preload("EquipmentType").Preload("Ird").Order("id").Find(&out).Error
	return out, err
}

// ── EquipmentType ───────────────────────────────────────────

func (s *Store) CreateType(m *models.EquipmentType) error { return s.db.Create(m).Error }
func (s *Store) SaveType(m *models.EquipmentType) error   { return s.db.Save(m).Error }

func (s *Store) FindType(id uint) (*models.EquipmentType, error) {
	var m models.EquipmentType
	if err := s.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindTypeByKey looks a type up by its normalized name.
func (s *Store) FindTypeByKey(key string) (*models.EquipmentType, error) {
	var m models.EquipmentType
	if err := s.db.Where("name_lower = ?", key).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListTypes() ([]models.EquipmentType, error) {
	var out []models.EquipmentType
	err := s.db.Order("name_lower").Find(&out).Error
	return out, err
}

func (s *Store) DeleteType(id uint) (bool, error) {
	tx := s.db.Delete(&models.EquipmentType{}, id)
	return tx.RowsAffected > 0, tx.Error
}
