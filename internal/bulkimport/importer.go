package bulkimport

import (
	"context"
	"errors"

	"irdinv/internal/apperr"
	"irdinv/internal/db"
	"irdinv/internal/inventory"
	"irdinv/internal/irdschema"
	"irdinv/internal/logs"
	"irdinv/internal/metrics"
	"irdinv/internal/models"
	"irdinv/internal/repo"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Success struct {
	Row         int    `json:"row"`
	IrdID       uint   `json:"irdId"`
	EquipmentID uint   `json:"equipmentId"`
	Name        string `json:"name"`
	IP          string `json:"ip"`
}

type Failure struct {
	Row   int    `json:"row"`
	Data  Row    `json:"data"`
	Error string `json:"error"`
}

type Summary struct {
	TotalProcessed   int `json:"totalProcessed"`
	IrdsCreated      int `json:"irdsCreated"`
	EquipmentCreated int `json:"equipmentCreated"`
	Errors           int `json:"errors"`
}

type Result struct {
	Successful []Success `json:"successful"`
	Errors     []Failure `json:"errors"`
	Summary    Summary   `json:"summary"`
}

// Importer creates one Ird and one fresh Equipment per row. Rows are
// independent: duplicates of existing pairs are allowed here (each row gets
// its own import key) and a failed row never stops the batch.
type Importer struct {
	runner *db.TxRunner
	store  *repo.Store
	types  *inventory.TypeResolver
}

func NewImporter(runner *db.TxRunner, store *repo.Store, types *inventory.TypeResolver) *Importer {
	return &Importer{runner: runner, store: store, types: types}
}

// ImportRows processes rows in order. Only a failure outside every row
// (resolving the shared "ird" type) fails the whole batch.
func (im *Importer) ImportRows(ctx context.Context, rows []Row) (*Result, error) {
	log := logs.FromContext(ctx).WithField("op", "bulk.import")

	var typeID uint
	err := im.runner.Run(ctx, "bulk.resolve_type", func(x db.Exec) error {
		var err error
		typeID, err = im.types.Resolve(x, inventory.IrdTypeName)
		return err
	})
	if err != nil {
		log.WithError(err).Error("resolve ird equipment type")
		return nil, err
	}

	res := &Result{Successful: []Success{}, Errors: []Failure{}}
	for i, row := range rows {
		n := i + 2 // строка 1: заголовок
		res.Summary.TotalProcessed++

		ok, err := im.importRow(ctx, typeID, row)
		if err != nil {
			res.Summary.Errors++
			res.Errors = append(res.Errors, Failure{Row: n, Data: row, Error: rowMessage(err)})
			metrics.BulkRows.WithLabelValues("failed").Inc()
			log.WithFields(logrus.Fields{"row": n}).WithError(err).Info("row rejected")
			continue
		}
		ok.Row = n
		res.Summary.IrdsCreated++
		res.Summary.EquipmentCreated++
		res.Successful = append(res.Successful, *ok)
		metrics.BulkRows.WithLabelValues("ok").Inc()
	}

	log.WithFields(logrus.Fields{
		"processed": res.Summary.TotalProcessed,
		"created":   res.Summary.IrdsCreated,
		"failed":    res.Summary.Errors,
	}).Info("bulk import finished")
	return res, nil
}

func (im *Importer) importRow(ctx context.Context, typeID uint, row Row) (*Success, error) {
	const op = "bulk.row"
	spec, err := irdschema.Build(op, row)
	if err != nil {
		return nil, err
	}

	var (
		out       Success
		inTx      bool
		createdID uint
	)
	err = im.runner.Run(ctx, op, func(x db.Exec) error {
		out, createdID = Success{}, 0
		inTx = x.InTx
		st := im.store.With(x.DB)

		ird := &models.Ird{IrdSpec: spec, ImportKey: uuid.NewString()}
		if err := st.CreateIrd(ird); err != nil {
			return apperr.Persistence(op, err)
		}
		createdID = ird.ID

		e := inventory.EquipmentFor(ird, typeID)
		if err := st.CreateEquipment(e); err != nil {
			if uv, dup := db.AsUniqueViolation(err); dup {
				return apperr.Conflict(op, uv.Fields(map[string]string{"management_ip": "managementIp", "ird_id": "irdRef"}), nil, err)
			}
			return apperr.Persistence(op, err)
		}
		out = Success{IrdID: ird.ID, EquipmentID: e.ID, Name: ird.Name, IP: ird.AdminIP}
		return nil
	})
	if err != nil {
		if createdID != 0 && !inTx {
			// без транзакции: IRD без оборудования не оставляем
			if _, derr := im.store.With(im.runner.DB().WithContext(ctx)).DeleteIrd(createdID); derr != nil {
				logs.FromContext(ctx).WithError(derr).WithField("ird_id", createdID).Error("compensation: delete ird failed")
			}
		}
		return nil, err
	}
	return &out, nil
}

// rowMessage is the text stored with a failed row.
func rowMessage(err error) string {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Kind == apperr.KindPersistence && e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}
