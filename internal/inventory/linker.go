package inventory

import (
	"context"
	"errors"
	"fmt"

	"irdinv/internal/apperr"
	"irdinv/internal/db"
	"irdinv/internal/irdschema"
	"irdinv/internal/logs"
	"irdinv/internal/metrics"
	"irdinv/internal/models"
	"irdinv/internal/repo"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const notAvailable = "N/A"

// IrdInput: поля нового IRD по ключам API (или старым заголовкам Excel).
type IrdInput map[string]string

// IrdPatch is a partial update. EquipmentID, when set, retargets the link to
// that specific Equipment row.
type IrdPatch struct {
	Fields      map[string]string
	EquipmentID *uint
}

type EquipmentInfo struct {
	Created       bool   `json:"created"`
	Adopted       bool   `json:"adopted"`
	Reason        string `json:"reason"`
	EquipmentType string `json:"equipmentType"`
}

// Linked is an Ird with its populated Equipment.
type Linked struct {
	Ird           *models.Ird       `json:"ird"`
	Equipment     *models.Equipment `json:"equipment"`
	EquipmentInfo *EquipmentInfo    `json:"equipmentInfo,omitempty"`
}

// Linker keeps every Ird paired with at most one Equipment whose ird_id
// points back at it.
type Linker struct {
	runner *db.TxRunner
	store  *repo.Store
	types  *TypeResolver
}

func NewLinker(runner *db.TxRunner, store *repo.Store, types *TypeResolver) *Linker {
	return &Linker{runner: runner, store: store, types: types}
}

// irdColumns: имена колонок → поля API для сообщений о дубликатах.
var irdColumns = map[string]string{
	"name_lower":    "name",
	"admin_ip":      "adminIp",
	"import_key":    "",
	"ird_id":        "irdRef",
	"management_ip": "managementIp",
}

// ── Create ──────────────────────────────────────────────────

func (l *Linker) Create(ctx context.Context, in IrdInput) (*Linked, error) {
	const op = "ird.create"
	spec, err := irdschema.Build(op, in)
	if err != nil {
		return nil, l.done(ctx, op, err)
	}

	var (
		ird        *models.Ird
		eqID       uint
		info       EquipmentInfo
		inTx       bool
		createdID  uint
		insertedEq uint
	)
	err = l.runner.Run(ctx, op, func(x db.Exec) error {
		ird, eqID, createdID, insertedEq = nil, 0, 0, 0
		info = EquipmentInfo{EquipmentType: IrdTypeName}
		inTx = x.InTx
		st := l.store.With(x.DB)

		// 1) IRD
		m := &models.Ird{IrdSpec: spec}
		if err := st.CreateIrd(m); err != nil {
			return irdWriteErr(op, m, err)
		}
		if m.ID == 0 {
			return apperr.Persistence(op, errors.New("insert returned no id"))
		}
		ird, createdID = m, m.ID

		// 2) тип "ird"
		typeID, err := l.types.Resolve(x, IrdTypeName)
		if err != nil {
			return err
		}

		// 3) связанное оборудование
		e, adopted, err := l.insertOrAdopt(op, x, m.ID, EquipmentFor(m, typeID))
		if err != nil {
			return err
		}
		eqID = e.ID
		if adopted {
			info.Adopted = true
			info.Reason = "existing unclaimed equipment adopted"
		} else {
			insertedEq = e.ID
			info.Created = true
			info.Reason = "linked equipment created"
		}

		// 4) ровно одно оборудование ссылается на новый IRD
		return l.checkLink(op, st, m.ID)
	})
	if err != nil {
		if createdID != 0 && !inTx {
			l.compensate(ctx, op, createdID, insertedEq)
		}
		return nil, l.done(ctx, op, err)
	}

	out, err := l.populate(ctx, op, ird, eqID)
	if err != nil {
		return nil, l.done(ctx, op, err)
	}
	out.EquipmentInfo = &info
	return out, l.done(ctx, op, nil)
}

// insertOrAdopt inserts want. A unique violation on management_ip (legacy
// index) or ird_id is recovered by adopting the existing row when it is
// unclaimed or already linked to irdID.
func (l *Linker) insertOrAdopt(op string, x db.Exec, irdID uint, want *models.Equipment) (*models.Equipment, bool, error) {
	err := x.Attempt(func(tx *gorm.DB) error {
		return l.store.With(tx).CreateEquipment(want)
	})
	if err == nil {
		return want, false, nil
	}
	uv, dup := db.AsUniqueViolation(err)
	if !dup {
		return nil, false, apperr.Persistence(op, err)
	}

	st := l.store.With(x.DB)
	var (
		existing *models.Equipment
		field    string
		value    string
		lookErr  error
	)
	switch {
	case uv.Has("management_ip") && want.ManagementIP != nil:
		field, value = "managementIp", *want.ManagementIP
		existing, lookErr = st.FindEquipmentByManagementIP(value)
	case uv.Has("ird_id"):
		field, value = "irdRef", fmt.Sprint(irdID)
		existing, lookErr = st.FindEquipmentByIrd(irdID)
	default:
		return nil, false, apperr.Conflict(op, uv.Fields(irdColumns), nil, err)
	}
	if lookErr != nil {
		return nil, false, apperr.Persistence(op, fmt.Errorf("lookup conflicting equipment by %s: %w", field, lookErr))
	}

	if existing.IrdID != nil && *existing.IrdID != irdID {
		c := apperr.Conflict(op, []string{field}, map[string]string{field: value}, err)
		c.Message = fmt.Sprintf("%s %q already claimed by IRD %d", field, value, *existing.IrdID)
		return nil, false, c
	}

	existing.Name = want.Name
	existing.Brand = want.Brand
	existing.Model = want.Model
	existing.EquipmentTypeID = want.EquipmentTypeID
	existing.ManagementIP = want.ManagementIP
	existing.IrdID = &irdID
	if err := st.SaveEquipment(existing); err != nil {
		return nil, false, equipmentWriteErr(op, existing, err)
	}
	return existing, true, nil
}

// compensate undoes a create that failed without a transaction. Failures are
// logged; the caller keeps reporting the original error.
func (l *Linker) compensate(ctx context.Context, op string, irdID, insertedEq uint) {
	log := logs.FromContext(ctx).WithFields(logrus.Fields{"op": op, "ird_id": irdID})
	st := l.store.With(l.runner.DB().WithContext(ctx))

	if insertedEq != 0 {
		if err := st.DeleteEquipment(insertedEq); err != nil {
			log.WithError(err).WithField("equipment_id", insertedEq).Error("compensation: delete equipment failed")
		}
	}
	if _, err := st.DetachEquipment(irdID, 0); err != nil {
		log.WithError(err).Error("compensation: detach equipment failed")
	}
	if _, err := st.DeleteIrd(irdID); err != nil {
		log.WithError(err).Error("compensation: delete ird failed")
		return
	}
	log.Warn("compensation: removed ird created without transaction")
}

// ── Update ──────────────────────────────────────────────────

func (l *Linker) Update(ctx context.Context, id uint, p IrdPatch) (*Linked, error) {
	const op = "ird.update"
	// значения проверяются до любой записи
	if err := irdschema.Apply(op, &models.IrdSpec{}, p.Fields); err != nil {
		return nil, l.done(ctx, op, err)
	}

	var (
		ird  *models.Ird
		eqID uint
	)
	err := l.runner.Run(ctx, op, func(x db.Exec) error {
		ird, eqID = nil, 0
		st := l.store.With(x.DB)

		m, err := st.FindIrd(id)
		if err != nil {
			if repo.IsNotFound(err) {
				return apperr.NotFound(op, "ird %d not found", id)
			}
			return apperr.Persistence(op, err)
		}
		if err := irdschema.Apply(op, &m.IrdSpec, p.Fields); err != nil {
			return err
		}
		if err := st.SaveIrd(m); err != nil {
			return irdWriteErr(op, m, err)
		}
		ird = m

		typeID, err := l.types.Resolve(x, IrdTypeName)
		if err != nil {
			return err
		}
		want := EquipmentFor(m, typeID)

		var e *models.Equipment
		if p.EquipmentID != nil {
			e, err = st.FindEquipment(*p.EquipmentID)
			if err != nil {
				if repo.IsNotFound(err) {
					return apperr.NotFound(op, "equipment %d not found", *p.EquipmentID)
				}
				return apperr.Persistence(op, err)
			}
			if e.IrdID != nil && *e.IrdID != m.ID {
				logs.FromContext(ctx).WithFields(logrus.Fields{
					"op": op, "equipment_id": e.ID, "from_ird": *e.IrdID, "to_ird": m.ID,
				}).Warn("equipment relinked to another ird")
			}
			// другие строки, ссылающиеся на этот IRD, отвязываем
			if _, err := st.DetachEquipment(m.ID, e.ID); err != nil {
				return apperr.Persistence(op, err)
			}
		} else {
			e, err = st.FindEquipmentByIrd(m.ID)
			if err != nil && !repo.IsNotFound(err) {
				return apperr.Persistence(op, err)
			}
		}

		if e == nil {
			// пробел в старых данных: оборудования нет, создаём
			created, _, err := l.insertOrAdopt(op, x, m.ID, want)
			if err != nil {
				return err
			}
			eqID = created.ID
			return l.checkLink(op, st, m.ID)
		}

		e.Name = want.Name
		e.Brand = want.Brand
		e.Model = want.Model
		e.EquipmentTypeID = want.EquipmentTypeID
		e.ManagementIP = want.ManagementIP
		e.IrdID = want.IrdID
		if err := st.SaveEquipment(e); err != nil {
			return equipmentWriteErr(op, e, err)
		}
		eqID = e.ID
		return l.checkLink(op, st, m.ID)
	})
	if err != nil {
		return nil, l.done(ctx, op, err)
	}

	out, err := l.populate(ctx, op, ird, eqID)
	return out, l.done(ctx, op, err)
}

// ── Delete ──────────────────────────────────────────────────

// Delete removes the Ird and detaches (does not delete) its Equipment.
func (l *Linker) Delete(ctx context.Context, id uint) error {
	const op = "ird.delete"
	var detached int64
	err := l.runner.Run(ctx, op, func(x db.Exec) error {
		st := l.store.With(x.DB)
		ok, err := st.DeleteIrd(id)
		if err != nil {
			return apperr.Persistence(op, err)
		}
		if !ok {
			return apperr.NotFound(op, "ird %d not found", id)
		}
		if detached, err = st.DetachEquipment(id, 0); err != nil {
			return apperr.Persistence(op, err)
		}
		return nil
	})
	if err == nil {
		logs.FromContext(ctx).WithFields(logrus.Fields{"op": op, "ird_id": id, "detached": detached}).Info("ird deleted")
	}
	return l.done(ctx, op, err)
}

// ── Read side ───────────────────────────────────────────────

func (l *Linker) List(ctx context.Context) ([]models.Ird, error) {
	out, err := l.store.With(l.runner.DB().WithContext(ctx)).ListIrds()
	if err != nil {
		return nil, apperr.Persistence("ird.list", err)
	}
	return out, nil
}

// Get returns the Ird and its linked Equipment (nil when there is none).
func (l *Linker) Get(ctx context.Context, id uint) (*Linked, error) {
	const op = "ird.get"
	st := l.store.With(l.runner.DB().WithContext(ctx))
	m, err := st.FindIrd(id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFound(op, "ird %d not found", id)
		}
		return nil, apperr.Persistence(op, err)
	}
	e, err := st.FindEquipmentByIrd(id)
	switch {
	case repo.IsNotFound(err):
		return &Linked{Ird: m}, nil
	case err != nil:
		return nil, apperr.Persistence(op, err)
	}
	return l.populate(ctx, op, m, e.ID)
}

// ── helpers ─────────────────────────────────────────────────

// EquipmentFor builds the Equipment payload mirroring ird: same name, adminIp
// as management address, brand/model defaulting to "N/A".
func EquipmentFor(ird *models.Ird, typeID uint) *models.Equipment {
	irdID := ird.ID
	e := &models.Equipment{
		Name:            ird.Name,
		Brand:           orNA(ird.Brand),
		Model:           orNA(ird.Model),
		EquipmentTypeID: typeID,
		IrdID:           &irdID,
	}
	if ird.AdminIP != "" {
		ip := ird.AdminIP
		e.ManagementIP = &ip
	}
	return e
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func (l *Linker) checkLink(op string, st *repo.Store, irdID uint) error {
	n, err := st.CountEquipmentByIrd(irdID)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	if n != 1 {
		return apperr.InvariantViolation(op, "expected exactly one equipment linked to ird %d, found %d", irdID, n)
	}
	return nil
}

func (l *Linker) populate(ctx context.Context, op string, ird *models.Ird, eqID uint) (*Linked, error) {
	e, err := l.store.With(l.runner.DB().WithContext(ctx)).LoadEquipment(eqID)
	if err != nil {
		return nil, apperr.Persistence(op, fmt.Errorf("populate equipment %d: %w", eqID, err))
	}
	return &Linked{Ird: ird, Equipment: e}, nil
}

// irdWriteErr translates an Ird insert/update failure. The compound index is
// always reported as both fields together.
func irdWriteErr(op string, m *models.Ird, err error) error {
	uv, dup := db.AsUniqueViolation(err)
	if !dup {
		return apperr.Persistence(op, err)
	}
	if uv.Index == db.IndexIrdNameAdminIP || uv.Has("name_lower") || uv.Has("admin_ip") || len(uv.Columns) == 0 {
		return apperr.Conflict(op, []string{"name", "adminIp"},
			map[string]string{"name": m.Name, "adminIp": m.AdminIP}, err)
	}
	return apperr.Conflict(op, uv.Fields(irdColumns), nil, err)
}

func equipmentWriteErr(op string, e *models.Equipment, err error) error {
	uv, dup := db.AsUniqueViolation(err)
	if !dup {
		return apperr.Persistence(op, err)
	}
	fields := uv.Fields(irdColumns)
	values := map[string]string{}
	for _, f := range fields {
		switch {
		case f == "irdRef" && e.IrdID != nil:
			values[f] = fmt.Sprint(*e.IrdID)
		case f == "managementIp" && e.ManagementIP != nil:
			values[f] = *e.ManagementIP
		}
	}
	return apperr.Conflict(op, fields, values, err)
}

// done records the outcome of op and logs failures with their kind.
func (l *Linker) done(ctx context.Context, op string, err error) error {
	if err == nil {
		metrics.IrdOps.WithLabelValues(op, "ok").Inc()
		return nil
	}
	if _, ok := apperr.As(err); !ok {
		err = apperr.Persistence(op, err)
	}
	kind := apperr.KindOf(err)
	metrics.IrdOps.WithLabelValues(op, kind.String()).Inc()

	entry := logs.FromContext(ctx).WithFields(logrus.Fields{"op": op, "kind": kind.String()}).WithError(err)
	switch kind {
	case apperr.KindInvalidArgument, apperr.KindNotFound, apperr.KindConflict:
		entry.Info("ird operation rejected")
	default:
		entry.Error("ird operation failed")
	}
	return err
}
