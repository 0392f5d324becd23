package scan

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/harborgrid/c360/internal/model"
)

// CSVAdapter scans source systems exported as CSV files. Each system maps
// to <dir>/<system name>.csv; the header row names the attributes and
// types are inferred from the data rows. Legacy exports in Latin-1 are
// decoded when the adapter is built with that encoding.
type CSVAdapter struct {
	dir     string
	latin1  bool
	maxRows int
}

type CSVOption func(*CSVAdapter)

// WithLatin1 decodes files as ISO 8859-1 instead of UTF-8.
func WithLatin1() CSVOption {
	return func(a *CSVAdapter) { a.latin1 = true }
}

// WithMaxRows caps how many data rows are read for type inference.
func WithMaxRows(n int) CSVOption {
	return func(a *CSVAdapter) { a.maxRows = n }
}

func NewCSV(dir string, opts ...CSVOption) *CSVAdapter {
	a := &CSVAdapter{dir: dir, maxRows: 200}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *CSVAdapter) Name() string { return "csv" }

func (a *CSVAdapter) Scan(ctx context.Context, src *model.SourceSystem) ([]model.SourceAttribute, error) {
	header, rows, err := a.read(src.Name)
	if err != nil {
		return nil, err
	}

	attrs := make([]model.SourceAttribute, 0, len(header))
	for col, name := range header {
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			if col < len(row) && row[col] != "" {
				values = append(values, row[col])
			}
		}
		attrs = append(attrs, model.SourceAttribute{
			SourceSystemID: src.ID,
			Name:           strings.TrimSpace(name),
			DataType:       inferType(values),
		})
	}
	return attrs, nil
}

func (a *CSVAdapter) Sample(ctx context.Context, src *model.SourceSystem, attr *model.SourceAttribute, limit int) ([]string, error) {
	header, rows, err := a.read(src.Name)
	if err != nil {
		return nil, err
	}

	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == attr.Name {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, eris.Errorf("csv: column %q not found in %s", attr.Name, src.Name)
	}

	var values []string
	for _, row := range rows {
		if limit > 0 && len(values) >= limit {
			break
		}
		if col < len(row) {
			values = append(values, row[col])
		}
	}
	return values, nil
}

func (a *CSVAdapter) read(system string) ([]string, [][]string, error) {
	path := filepath.Join(a.dir, system+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close()

	var src io.Reader = f
	if a.latin1 {
		src = charmap.ISO8859_1.NewDecoder().Reader(f)
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: read header %s", path)
	}

	var rows [][]string
	for len(rows) < a.maxRows {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "csv: read row %s", path)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "2006-01-02T15:04:05Z07:00"}

// inferType picks the narrowest type all sampled values satisfy. Empty
// samples fall back to text.
func inferType(values []string) model.DataType {
	if len(values) == 0 {
		return model.TypeText
	}

	isInt, isReal, isDate, isBool := true, true, true, true
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isReal = false
		}
		if !parseableDate(v) {
			isDate = false
		}
		switch strings.ToLower(v) {
		case "true", "false", "yes", "no", "0", "1":
		default:
			isBool = false
		}
		if !isInt && !isReal && !isDate && !isBool {
			return model.TypeText
		}
	}

	switch {
	case isBool && !isInt:
		return model.TypeBoolean
	case isInt:
		return model.TypeInteger
	case isReal:
		return model.TypeReal
	case isDate:
		return model.TypeDate
	}
	return model.TypeText
}

func parseableDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
