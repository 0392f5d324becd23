package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/scan"
	"github.com/harborgrid/c360/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store, *scan.StaticAdapter) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	static := scan.NewStatic()
	adapters := scan.NewRegistry()
	adapters.Register(static)
	return NewService(st, adapters), st, static
}

func TestService_RegisterRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Register(context.Background(), &model.SourceSystem{})
	assert.True(t, model.IsValidationError(err))
}

func TestService_ScanReplacesAttributes(t *testing.T) {
	svc, st, static := newTestService(t)
	ctx := context.Background()

	src := &model.SourceSystem{Name: "crm"}
	require.NoError(t, svc.Register(ctx, src))

	static.SetAttributes("crm", []model.SourceAttribute{
		{Name: "cust_email", DataType: model.TypeText},
		{Name: "cust_id", DataType: model.TypeInteger},
	})
	attrs, err := svc.Scan(ctx, src.ID, "static")
	require.NoError(t, err)
	assert.Len(t, attrs, 2)

	static.SetAttributes("crm", []model.SourceAttribute{
		{Name: "cust_email", DataType: model.TypeText},
	})
	attrs, err = svc.Scan(ctx, src.ID, "static")
	require.NoError(t, err)
	assert.Len(t, attrs, 1)

	stored, err := st.ListSourceAttributes(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestService_ScanFailureDegradesKeepsAttributes(t *testing.T) {
	svc, st, static := newTestService(t)
	ctx := context.Background()

	src := &model.SourceSystem{Name: "crm"}
	require.NoError(t, svc.Register(ctx, src))

	static.SetAttributes("crm", []model.SourceAttribute{{Name: "cust_email", DataType: model.TypeText}})
	_, err := svc.Scan(ctx, src.ID, "static")
	require.NoError(t, err)

	static.FailWith("crm", errors.New("connection refused"))
	_, err = svc.Scan(ctx, src.ID, "static")
	var sf *model.ScanFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, src.ID, sf.SourceSystemID)

	got, err := st.GetSourceSystem(ctx, src.ID)
	require.NoError(t, err)
	assert.True(t, got.Degraded)

	stored, err := st.ListSourceAttributes(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestService_ScanDeactivatedRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	src := &model.SourceSystem{Name: "crm"}
	require.NoError(t, svc.Register(ctx, src))
	require.NoError(t, svc.Deactivate(ctx, src.ID))

	_, err := svc.Scan(ctx, src.ID, "static")
	assert.True(t, model.IsValidationError(err))
}

func TestService_Samples(t *testing.T) {
	svc, st, static := newTestService(t)
	ctx := context.Background()

	src := &model.SourceSystem{Name: "crm"}
	require.NoError(t, svc.Register(ctx, src))
	static.SetAttributes("crm", []model.SourceAttribute{{Name: "cust_email", DataType: model.TypeText}})
	_, err := svc.Scan(ctx, src.ID, "static")
	require.NoError(t, err)
	static.SetSamples("crm", "cust_email", []string{"a@x.com", "b@x.com", "c@x.com"})

	attrs, err := st.ListSourceAttributes(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 1)

	values, err := svc.Samples(ctx, attrs[0].ID, "static", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, values)
}

func TestSeedCatalog_SkipsExisting(t *testing.T) {
	_, st, _ := newTestService(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`attributes:
  - name: email
    display_name: Email Address
    category: identity
    data_type: text
    required: true
    pii: true
  - name: lifetime_value
    category: commerce
    data_type: real
`), 0o644))

	fixture, err := LoadCatalogFixture(path)
	require.NoError(t, err)

	created, err := SeedCatalog(ctx, st, fixture)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Seeding twice is a no-op.
	created, err = SeedCatalog(ctx, st, fixture)
	require.NoError(t, err)
	assert.Zero(t, created)
}
