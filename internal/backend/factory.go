package backend

import (
	"context"
	"fmt"

	"finboard/internal/auth"
	"finboard/internal/dataservice"
	"finboard/internal/log"
	"finboard/internal/store"
	"finboard/internal/store/memory"
	"finboard/internal/store/relational"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Owners resolves the request owner first and the configured owner second.
func (c Config) Owners() auth.OwnerResolver {
	if c.OwnerID == "" {
		return auth.ContextResolver{}
	}
	return auth.Chain{auth.ContextResolver{}, auth.NewStatic(c.OwnerID, c.OwnerEmail)}
}

// CreateBackend implements Factory.CreateBackend. A relational database that
// cannot be opened is not fatal: the data service then serves the in-memory
// replica for the life of the process.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	owners := config.Owners()
	fallback := memory.New(memory.WithOwnerResolver(owners))
	res := &BackendResult{Fallback: fallback, Owners: owners}

	dialect, isRelational := config.Type.Dialect()
	if isRelational {
		primary, err := relational.Open(ctx, dialect, config.DSN, owners)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("open %s backend: %w", config.Type, ctx.Err())
			}
			f.logger.WarnContext(ctx, "Relational store unavailable, serving in-memory data",
				log.NewFields().WithOperation(log.OpFallback).WithError(err).ToSlice()...)
		} else {
			res.Primary = primary
			res.Cleanup = primary.Close
		}
	}

	var primary store.Store
	if res.Primary != nil {
		primary = res.Primary
	}
	res.Data = dataservice.New(primary, fallback, dataservice.WithLogger(f.logger))

	f.logger.InfoContext(ctx, "Initialized backend",
		"backend", config.Type.String(),
		"primary", res.Primary != nil)
	return res, nil
}
