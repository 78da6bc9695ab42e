package testutil

import (
	"context"

	"abitudini/gridrange/internal/core/audit"
)

// MockAuditRepository is a Func-field audit.Repository. Unset funcs succeed with no data.
type MockAuditRepository struct {
	SaveFunc                func(ctx context.Context, log audit.FetchLog) error
	FindByCorrelationIDFunc func(ctx context.Context, correlationID string) ([]audit.FetchLog, error)
}

func (m *MockAuditRepository) Save(ctx context.Context, log audit.FetchLog) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, log)
	}
	return nil
}

func (m *MockAuditRepository) FindByCorrelationID(ctx context.Context, correlationID string) ([]audit.FetchLog, error) {
	if m.FindByCorrelationIDFunc != nil {
		return m.FindByCorrelationIDFunc(ctx, correlationID)
	}
	return nil, nil
}
