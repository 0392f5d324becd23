// Package registry manages the source system registry and the target
// attribute catalog.
package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/scan"
	"github.com/harborgrid/c360/internal/store"
)

// Service wraps the store with source lifecycle and scan orchestration.
type Service struct {
	store    store.Store
	adapters *scan.Registry
}

func NewService(st store.Store, adapters *scan.Registry) *Service {
	return &Service{store: st, adapters: adapters}
}

// Register creates a new source system. Name is required and unique.
func (s *Service) Register(ctx context.Context, src *model.SourceSystem) error {
	if src.Name == "" {
		return model.NewValidationError("name", "must not be empty")
	}
	if err := s.store.CreateSourceSystem(ctx, src); err != nil {
		return err
	}
	zap.L().Info("registry: source system registered",
		zap.String("id", src.ID),
		zap.String("name", src.Name),
	)
	return nil
}

// Scan discovers the system's current attributes through the named
// adapter and replaces the stored set wholesale. On adapter failure the
// system is marked degraded, its last successful attribute set is kept,
// and a ScanFailure is returned.
func (s *Service) Scan(ctx context.Context, sourceSystemID, adapterName string) ([]model.SourceAttribute, error) {
	src, err := s.store.GetSourceSystem(ctx, sourceSystemID)
	if err != nil {
		return nil, err
	}
	if !src.Active {
		return nil, model.NewValidationError("source_system_id", "system is deactivated")
	}

	adapter, err := s.adapters.Get(adapterName)
	if err != nil {
		return nil, err
	}

	attrs, scanErr := adapter.Scan(ctx, src)
	if scanErr != nil {
		if markErr := s.store.MarkSourceDegraded(ctx, src.ID, scanErr.Error()); markErr != nil {
			return nil, markErr
		}
		zap.L().Warn("registry: scan failed, source degraded",
			zap.String("source_system_id", src.ID),
			zap.Error(scanErr),
		)
		return nil, &model.ScanFailure{SourceSystemID: src.ID, Err: scanErr}
	}

	if err := s.store.ReplaceSourceAttributes(ctx, src.ID, attrs); err != nil {
		return nil, err
	}
	zap.L().Info("registry: scan complete",
		zap.String("source_system_id", src.ID),
		zap.Int("attributes", len(attrs)),
	)
	return attrs, nil
}

// Deactivate retires a source system. Existing mappings and job history
// keep referencing it; there is no hard delete.
func (s *Service) Deactivate(ctx context.Context, sourceSystemID string) error {
	if err := s.store.DeactivateSourceSystem(ctx, sourceSystemID); err != nil {
		return err
	}
	zap.L().Info("registry: source system deactivated", zap.String("id", sourceSystemID))
	return nil
}

// Samples returns raw sample values for a source attribute, routed
// through the named adapter.
func (s *Service) Samples(ctx context.Context, sourceAttributeID, adapterName string, limit int) ([]string, error) {
	attr, err := s.store.GetSourceAttribute(ctx, sourceAttributeID)
	if err != nil {
		return nil, err
	}
	src, err := s.store.GetSourceSystem(ctx, attr.SourceSystemID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.Get(adapterName)
	if err != nil {
		return nil, err
	}

	values, err := adapter.Sample(ctx, src, attr, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: sample %s", attr.Name)
	}
	return values, nil
}
