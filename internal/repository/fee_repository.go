package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// FeeRepository stores fees.
type FeeRepository struct {
	*Collection[models.Fee]
}

// NewFeeRepository binds the fees collection.
func NewFeeRepository(gw docstore.Gateway) *FeeRepository {
	return &FeeRepository{Collection: NewCollection[models.Fee](gw, models.CollectionFees)}
}

// SetStatus records a payment state change.
func (r *FeeRepository) SetStatus(ctx context.Context, id string, status models.FeeStatus) error {
	return r.Update(ctx, id, map[string]any{"status": string(status)})
}

// ByStatus returns fees in one payment state.
func (r *FeeRepository) ByStatus(ctx context.Context, status models.FeeStatus) ([]models.Fee, error) {
	return r.Query(ctx, docstore.Where("status", string(status)))
}
