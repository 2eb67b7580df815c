package inventory

import (
	"context"
	"errors"
	"testing"

	"irdinv/internal/apperr"
	"irdinv/internal/db"
	"irdinv/internal/dbtest"
	"irdinv/internal/metrics"
	"irdinv/internal/models"
	"irdinv/internal/repo"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newLinker(t *testing.T, opts ...db.TxOption) (*Linker, *gorm.DB) {
	t.Helper()
	g := dbtest.Open(t)
	store := repo.NewStore(g)
	return NewLinker(db.NewTxRunner(g, opts...), store, NewTypeResolver(store)), g
}

func noTransactions(context.Context, *gorm.DB, func(*gorm.DB) error) error {
	return errors.New("Transaction numbers are only allowed on a replica set member or mongos")
}

func withLegacyMgmtIndex(t *testing.T, g *gorm.DB) {
	t.Helper()
	require.NoError(t, g.Exec("CREATE UNIQUE INDEX "+db.IndexEquipmentMgmtIP+" ON equipment(management_ip)").Error)
}

func count(t *testing.T, g *gorm.DB, m any, where ...any) int64 {
	t.Helper()
	var n int64
	q := g.Model(m)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func sampleIrd(name, ip string) IrdInput {
	return IrdInput{"name": name, "adminIp": ip, "brand": "Cisco", "model": "D9800", "frequency": "3840"}
}

func TestCreateLinksExactlyOneEquipment(t *testing.T) {
	l, g := newLinker(t)

	out, err := l.Create(context.Background(), sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)
	require.NotNil(t, out.Equipment)

	assert.NotZero(t, out.Ird.ID)
	assert.Equal(t, "ird-01", out.Ird.NameLower)
	assert.Equal(t, "3840", out.Ird.Frequency)
	assert.Equal(t, models.DefaultIrdImageURL, out.Ird.ImageURL)

	e := out.Equipment
	require.NotNil(t, e.IrdID)
	assert.Equal(t, out.Ird.ID, *e.IrdID)
	assert.Equal(t, "IRD-01", e.Name)
	assert.Equal(t, "Cisco", e.Brand)
	assert.Equal(t, "D9800", e.Model)
	require.NotNil(t, e.ManagementIP)
	assert.Equal(t, "10.0.0.1", *e.ManagementIP)
	require.NotNil(t, e.EquipmentType)
	assert.Equal(t, "ird", e.EquipmentType.NameLower)

	require.NotNil(t, out.EquipmentInfo)
	assert.True(t, out.EquipmentInfo.Created)
	assert.False(t, out.EquipmentInfo.Adopted)
	assert.Equal(t, IrdTypeName, out.EquipmentInfo.EquipmentType)

	assert.EqualValues(t, 1, count(t, g, &models.Equipment{}, "ird_id = ?", out.Ird.ID))
}

func TestCreateDefaultsBrandAndModel(t *testing.T) {
	l, _ := newLinker(t)

	out, err := l.Create(context.Background(), IrdInput{"name": "bare", "adminIp": "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, "N/A", out.Equipment.Brand)
	assert.Equal(t, "N/A", out.Equipment.Model)
}

func TestCreateReusesIrdType(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()

	a, err := l.Create(ctx, sampleIrd("a", "10.0.0.1"))
	require.NoError(t, err)
	b, err := l.Create(ctx, sampleIrd("b", "10.0.0.2"))
	require.NoError(t, err)

	assert.Equal(t, a.Equipment.EquipmentTypeID, b.Equipment.EquipmentTypeID)
	assert.EqualValues(t, 1, count(t, g, &models.EquipmentType{}))
}

func TestCreateRejectsDuplicateNameAndIP(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()

	_, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)

	_, err = l.Create(ctx, sampleIrd("  ird-01 ", "10.0.0.1"))
	require.ErrorIs(t, err, apperr.ErrConflict)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "adminIp"}, e.Fields)
	assert.Contains(t, e.Message, "adminIp")

	assert.EqualValues(t, 1, count(t, g, &models.Ird{}))
	assert.EqualValues(t, 1, count(t, g, &models.Equipment{}))

	// same name on another address is fine
	_, err = l.Create(ctx, sampleIrd("IRD-01", "10.0.0.2"))
	require.NoError(t, err)
}

func TestCreateValidatesBeforeWriting(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()

	_, err := l.Create(ctx, IrdInput{"name": "x", "adminIp": "10.0.0.256"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = l.Create(ctx, IrdInput{"adminIp": "10.0.0.1"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
	e, _ := apperr.As(err)
	assert.Equal(t, []string{"name"}, e.Fields)

	assert.Zero(t, count(t, g, &models.Ird{}))
	assert.Zero(t, count(t, g, &models.Equipment{}))
	assert.Zero(t, count(t, g, &models.EquipmentType{}))
}

func TestCreateFallsBackWithoutTransactions(t *testing.T) {
	l, g := newLinker(t, db.WithBeginFunc(noTransactions))
	before := testutil.ToFloat64(metrics.TxFallbacks.WithLabelValues("ird.create"))

	out, err := l.Create(context.Background(), sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count(t, g, &models.Equipment{}, "ird_id = ?", out.Ird.ID))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TxFallbacks.WithLabelValues("ird.create")))
}

func TestCreateAlwaysModeFailsWithoutTransactions(t *testing.T) {
	l, g := newLinker(t, db.WithBeginFunc(noTransactions), db.WithTxMode(db.TxAlways))

	_, err := l.Create(context.Background(), sampleIrd("IRD-01", "10.0.0.1"))
	require.Error(t, err)
	assert.Zero(t, count(t, g, &models.Ird{}))
}

func TestCreateAdoptsUnclaimedEquipment(t *testing.T) {
	l, g := newLinker(t)
	withLegacyMgmtIndex(t, g)

	typ := &models.EquipmentType{Name: "ird"}
	require.NoError(t, g.Create(typ).Error)
	ip := "10.0.0.1"
	orphan := &models.Equipment{Name: "old", Brand: "x", Model: "y", EquipmentTypeID: typ.ID, ManagementIP: &ip}
	require.NoError(t, g.Create(orphan).Error)

	out, err := l.Create(context.Background(), sampleIrd("IRD-01", ip))
	require.NoError(t, err)
	assert.Equal(t, orphan.ID, out.Equipment.ID)
	assert.Equal(t, "IRD-01", out.Equipment.Name)
	assert.True(t, out.EquipmentInfo.Adopted)
	assert.False(t, out.EquipmentInfo.Created)
	assert.EqualValues(t, 1, count(t, g, &models.Equipment{}))
}

func TestCreateConflictsWithClaimedEquipment(t *testing.T) {
	for name, opts := range map[string][]db.TxOption{
		"transaction": nil,
		"fallback":    {db.WithBeginFunc(noTransactions)},
	} {
		t.Run(name, func(t *testing.T) {
			l, g := newLinker(t, opts...)
			withLegacyMgmtIndex(t, g)
			ctx := context.Background()

			first, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
			require.NoError(t, err)

			// другой IRD на том же адресе: оборудование уже занято первым
			_, err = l.Create(ctx, sampleIrd("IRD-02", "10.0.0.1"))
			require.ErrorIs(t, err, apperr.ErrConflict)
			e, _ := apperr.As(err)
			assert.Equal(t, []string{"managementIp"}, e.Fields)

			// the second Ird was rolled back or compensated
			assert.EqualValues(t, 1, count(t, g, &models.Ird{}))
			assert.EqualValues(t, 1, count(t, g, &models.Equipment{}))
			got, err := l.Get(ctx, first.Ird.ID)
			require.NoError(t, err)
			assert.Equal(t, first.Equipment.ID, got.Equipment.ID)
		})
	}
}

func TestUpdateMergesFieldsAndSyncsEquipment(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()
	created, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)

	out, err := l.Update(ctx, created.Ird.ID, IrdPatch{Fields: map[string]string{"brand": "Harmonic", "adminIp": "10.0.0.7"}})
	require.NoError(t, err)
	assert.Equal(t, "Harmonic", out.Ird.Brand)
	assert.Equal(t, "D9800", out.Ird.Model)
	assert.Equal(t, "3840", out.Ird.Frequency)

	assert.Equal(t, created.Equipment.ID, out.Equipment.ID)
	assert.Equal(t, "Harmonic", out.Equipment.Brand)
	assert.Equal(t, "10.0.0.7", *out.Equipment.ManagementIP)
	assert.EqualValues(t, 1, count(t, g, &models.Equipment{}))
}

func TestUpdateRejectsInvalidPatchWithoutWriting(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()
	created, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)

	_, err = l.Update(ctx, created.Ird.ID, IrdPatch{Fields: map[string]string{"brand": "New", "adminIp": "bogus"}})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = l.Update(ctx, created.Ird.ID, IrdPatch{Fields: map[string]string{"name": "  "}})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)

	var m models.Ird
	require.NoError(t, g.First(&m, created.Ird.ID).Error)
	assert.Equal(t, "Cisco", m.Brand)
	assert.Equal(t, "IRD-01", m.Name)
}

func TestUpdateUnknownIrd(t *testing.T) {
	l, _ := newLinker(t)
	_, err := l.Update(context.Background(), 42, IrdPatch{Fields: map[string]string{"brand": "x"}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateIntoDuplicateConflicts(t *testing.T) {
	l, _ := newLinker(t)
	ctx := context.Background()
	_, err := l.Create(ctx, sampleIrd("A", "10.0.0.1"))
	require.NoError(t, err)
	b, err := l.Create(ctx, sampleIrd("B", "10.0.0.1"))
	require.NoError(t, err)

	_, err = l.Update(ctx, b.Ird.ID, IrdPatch{Fields: map[string]string{"name": "a"}})
	require.ErrorIs(t, err, apperr.ErrConflict)
	e, _ := apperr.As(err)
	assert.Equal(t, []string{"name", "adminIp"}, e.Fields)
}

func TestUpdateCreatesMissingEquipment(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()
	created, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)
	require.NoError(t, g.Delete(&models.Equipment{}, created.Equipment.ID).Error)

	out, err := l.Update(ctx, created.Ird.ID, IrdPatch{Fields: map[string]string{"model": "D9850"}})
	require.NoError(t, err)
	require.NotNil(t, out.Equipment)
	assert.NotEqual(t, created.Equipment.ID, out.Equipment.ID)
	assert.Equal(t, "D9850", out.Equipment.Model)
	assert.EqualValues(t, 1, count(t, g, &models.Equipment{}, "ird_id = ?", created.Ird.ID))
}

func TestUpdateWithExplicitEquipmentRelinks(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()
	created, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)

	spare := &models.Equipment{Name: "spare", Brand: "b", Model: "m", EquipmentTypeID: created.Equipment.EquipmentTypeID}
	require.NoError(t, g.Create(spare).Error)

	out, err := l.Update(ctx, created.Ird.ID, IrdPatch{EquipmentID: &spare.ID})
	require.NoError(t, err)
	assert.Equal(t, spare.ID, out.Equipment.ID)
	assert.Equal(t, "IRD-01", out.Equipment.Name)

	var old models.Equipment
	require.NoError(t, g.First(&old, created.Equipment.ID).Error)
	assert.Nil(t, old.IrdID)
	assert.EqualValues(t, 1, count(t, g, &models.Equipment{}, "ird_id = ?", created.Ird.ID))
}

func TestUpdateWithUnknownEquipment(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()
	created, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)

	missing := uint(999)
	_, err = l.Update(ctx, created.Ird.ID, IrdPatch{Fields: map[string]string{"brand": "x"}, EquipmentID: &missing})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	var m models.Ird
	require.NoError(t, g.First(&m, created.Ird.ID).Error)
	assert.Equal(t, "Cisco", m.Brand)
}

func TestDeleteDetachesEquipment(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()
	created, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)

	require.NoError(t, l.Delete(ctx, created.Ird.ID))
	assert.Zero(t, count(t, g, &models.Ird{}))

	var e models.Equipment
	require.NoError(t, g.First(&e, created.Equipment.ID).Error)
	assert.Nil(t, e.IrdID)

	assert.ErrorIs(t, l.Delete(ctx, created.Ird.ID), apperr.ErrNotFound)

	// the pair is free again
	_, err = l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)
}

func TestListSortedByAdminIP(t *testing.T) {
	l, _ := newLinker(t)
	ctx := context.Background()
	for _, ip := range []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"} {
		_, err := l.Create(ctx, sampleIrd("ird "+ip, ip))
		require.NoError(t, err)
	}
	list, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "10.0.0.1", list[0].AdminIP)
	assert.Equal(t, "10.0.0.3", list[2].AdminIP)
}

func TestGetWithoutEquipment(t *testing.T) {
	l, g := newLinker(t)
	ctx := context.Background()
	created, err := l.Create(ctx, sampleIrd("IRD-01", "10.0.0.1"))
	require.NoError(t, err)
	require.NoError(t, g.Delete(&models.Equipment{}, created.Equipment.ID).Error)

	got, err := l.Get(ctx, created.Ird.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Equipment)

	_, err = l.Get(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
