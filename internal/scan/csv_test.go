package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/model"
)

func writeCSV(t *testing.T, dir, system, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, system+".csv"), []byte(content), 0o644))
}

func TestCSVAdapter_ScanInfersTypes(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "crm", "cust_id,cust_email,balance,signup_date,is_active\n"+
		"1,a@x.com,10.50,2024-01-15,true\n"+
		"2,b@x.com,3.25,2024-02-01,false\n")

	a := NewCSV(dir)
	src := &model.SourceSystem{ID: "sys-1", Name: "crm"}

	attrs, err := a.Scan(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, attrs, 5)

	byName := map[string]model.DataType{}
	for _, attr := range attrs {
		assert.Equal(t, "sys-1", attr.SourceSystemID)
		byName[attr.Name] = attr.DataType
	}
	assert.Equal(t, model.TypeInteger, byName["cust_id"])
	assert.Equal(t, model.TypeText, byName["cust_email"])
	assert.Equal(t, model.TypeReal, byName["balance"])
	assert.Equal(t, model.TypeDate, byName["signup_date"])
	assert.Equal(t, model.TypeBoolean, byName["is_active"])
}

func TestCSVAdapter_Sample(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "crm", "cust_email\na@x.com\nb@x.com\nc@x.com\n")

	a := NewCSV(dir)
	src := &model.SourceSystem{ID: "sys-1", Name: "crm"}

	values, err := a.Sample(context.Background(), src, &model.SourceAttribute{Name: "cust_email"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, values)
}

func TestCSVAdapter_MissingFile(t *testing.T) {
	a := NewCSV(t.TempDir())
	_, err := a.Scan(context.Background(), &model.SourceSystem{Name: "ghost"})
	assert.Error(t, err)
}

func TestCSVAdapter_Latin1(t *testing.T) {
	dir := t.TempDir()
	// 0xE9 is é in ISO 8859-1.
	content := append([]byte("name\nRen"), 0xE9, '\n')
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.csv"), content, 0o644))

	a := NewCSV(dir, WithLatin1())
	src := &model.SourceSystem{Name: "legacy"}

	values, err := a.Sample(context.Background(), src, &model.SourceAttribute{Name: "name"}, 0)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "René", values[0])
}

func TestInferType_MixedFallsBackToText(t *testing.T) {
	assert.Equal(t, model.TypeText, inferType([]string{"1", "abc"}))
	assert.Equal(t, model.TypeText, inferType(nil))
	assert.Equal(t, model.TypeInteger, inferType([]string{"1", "2", "3"}))
	assert.Equal(t, model.TypeBoolean, inferType([]string{"true", "no"}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStatic())
	r.Register(NewCSV(t.TempDir()))

	a, err := r.Get("static")
	require.NoError(t, err)
	assert.Equal(t, "static", a.Name())

	_, err = r.Get("ftp")
	assert.Error(t, err)

	assert.Equal(t, []string{"csv", "static"}, r.Names())
}
