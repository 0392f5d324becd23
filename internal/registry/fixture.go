package registry

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

// CatalogFixture is the YAML shape of a target attribute catalog seed.
type CatalogFixture struct {
	Attributes []struct {
		Name        string `yaml:"name"`
		DisplayName string `yaml:"display_name"`
		Category    string `yaml:"category"`
		DataType    string `yaml:"data_type"`
		Required    bool   `yaml:"required"`
		PII         bool   `yaml:"pii"`
	} `yaml:"attributes"`
}

// LoadCatalogFixture reads a YAML catalog seed from the given path.
func LoadCatalogFixture(path string) (*CatalogFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read catalog fixture")
	}

	var fixture CatalogFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal catalog fixture")
	}
	return &fixture, nil
}

// SeedCatalog creates the fixture's target attributes, skipping names
// that already exist. Returns how many attributes were created.
func SeedCatalog(ctx context.Context, st store.Store, fixture *CatalogFixture) (int, error) {
	created := 0
	for _, fa := range fixture.Attributes {
		a := &model.TargetAttribute{
			Name:        fa.Name,
			DisplayName: fa.DisplayName,
			Category:    fa.Category,
			DataType:    model.DataType(fa.DataType),
			Required:    fa.Required,
			PII:         fa.PII,
		}
		err := st.CreateTargetAttribute(ctx, a)
		if err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				zap.L().Debug("registry: catalog attribute exists, skipping", zap.String("name", fa.Name))
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
