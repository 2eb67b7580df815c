package inventory

import (
	"strings"

	"irdinv/internal/apperr"
	"irdinv/internal/db"
	"irdinv/internal/models"
	"irdinv/internal/repo"

	"gorm.io/gorm"
)

// IrdTypeName: тип оборудования, к которому привязываются все IRD.
const IrdTypeName = "ird"

// TypeResolver finds or creates the EquipmentType for a name. The unique
// index on name_lower is the only source of truth; there is no cache.
type TypeResolver struct {
	store *repo.Store
}

func NewTypeResolver(store *repo.Store) *TypeResolver {
	return &TypeResolver{store: store}
}

// Resolve returns the id of the type called name, compared case-insensitively
// after trimming, creating the type on first use. x may or may not carry a
// transaction.
func (r *TypeResolver) Resolve(x db.Exec, name string) (uint, error) {
	const op = "equipment_type.resolve"
	key := models.NormalizeKey(name)
	if key == "" {
		return 0, apperr.InvalidArgument(op, "name", "equipment type name is required")
	}

	t, err := r.store.With(x.DB).FindTypeByKey(key)
	switch {
	case err == nil:
		return t.ID, nil
	case !repo.IsNotFound(err):
		return 0, apperr.Persistence(op, err)
	}
	return r.createOrFetch(x, strings.TrimSpace(name), key)
}

// createOrFetch inserts the type; losing a creation race to a concurrent
// resolver is not an error, the winner's row is returned instead.
func (r *TypeResolver) createOrFetch(x db.Exec, name, key string) (uint, error) {
	const op = "equipment_type.resolve"
	t := models.EquipmentType{Name: name}
	err := x.Attempt(func(tx *gorm.DB) error {
		return r.store.With(tx).CreateType(&t)
	})
	if err == nil {
		return t.ID, nil
	}
	if _, dup := db.AsUniqueViolation(err); !dup {
		return 0, apperr.Persistence(op, err)
	}

	existing, err := r.store.With(x.DB).FindTypeByKey(key)
	if err != nil {
		return 0, apperr.Persistence(op, err)
	}
	return existing.ID, nil
}
