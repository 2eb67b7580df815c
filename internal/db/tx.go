package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"irdinv/internal/logs"
	"irdinv/internal/metrics"

	"gorm.io/gorm"
)

// Exec: контекст выполнения записи, либо открытая транзакция, либо обычное
// соединение. Передаётся явно в каждый вызов хранилища.
type Exec struct {
	DB   *gorm.DB
	InTx bool
}

// Attempt runs fn so that a failure inside it leaves an enclosing transaction
// usable (savepoint). Outside a transaction fn runs as is.
func (x Exec) Attempt(fn func(db *gorm.DB) error) error {
	if !x.InTx {
		return fn(x.DB)
	}
	return x.DB.Transaction(fn)
}

type TxMode string

const (
	TxAuto   TxMode = "auto"   // try a transaction, fall back when the store has none
	TxAlways TxMode = "always" // never fall back
	TxNever  TxMode = "never"  // sequential writes only
)

func ParseTxMode(s string) (TxMode, error) {
	switch m := TxMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", TxAuto:
		return TxAuto, nil
	case TxAlways, TxNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown transaction mode %q (auto|always|never)", s)
	}
}

// BeginFunc runs fn inside a transaction on db.
type BeginFunc func(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error

func gormBegin(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// ErrTxUnsupported may be returned by a BeginFunc whose store cannot run
// multi-statement transactions.
var ErrTxUnsupported = errors.New("transactions are not supported by this deployment")

var txUnsupportedMarkers = []string{
	"transactions are not supported",
	"does not support transactions",
	"transaction numbers are only allowed on a replica set member or mongos",
	"transaction is not supported",
}

// IsTxUnsupported reports whether err says the deployment cannot provide a
// transaction at all, as opposed to a transaction that failed.
func IsTxUnsupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTxUnsupported) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, m := range txUnsupportedMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// TxRunner executes a unit of work inside a transaction when the store
// supports one and as plain sequential writes otherwise.
type TxRunner struct {
	db    *gorm.DB
	mode  TxMode
	begin BeginFunc
}

type TxOption func(*TxRunner)

func WithTxMode(m TxMode) TxOption { return func(r *TxRunner) { r.mode = m } }

// WithBeginFunc replaces how transactions are opened.
func WithBeginFunc(f BeginFunc) TxOption { return func(r *TxRunner) { r.begin = f } }

func NewTxRunner(db *gorm.DB, opts ...TxOption) *TxRunner {
	r := &TxRunner{db: db, mode: TxAuto, begin: gormBegin}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *TxRunner) DB() *gorm.DB { return r.db }

// Run executes work once. In TxAuto mode a transaction-unsupported failure
// reruns the same work without a transaction; every other error is returned
// unchanged.
func (r *TxRunner) Run(ctx context.Context, op string, work func(x Exec) error) error {
	plain := Exec{DB: r.db.WithContext(ctx)}
	if r.mode == TxNever {
		return work(plain)
	}

	err := r.begin(ctx, r.db, func(tx *gorm.DB) error {
		return work(Exec{DB: tx, InTx: true})
	})
	if err == nil || r.mode == TxAlways || !IsTxUnsupported(err) {
		return err
	}

	metrics.TxFallbacks.WithLabelValues(op).Inc()
	logs.FromContext(ctx).WithField("op", op).WithError(err).
		Warn("transactions unavailable, running without one")
	return work(plain)
}
