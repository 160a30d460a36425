package inventory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/resale-ledger/ledger"
)

// =============================================================================
// SOFT-DELETE CASCADE
// =============================================================================

// DeleteBatch hides a batch together with its items and costs. All three get
// the same deleted_at in one unit of work. The original batch_purchase entry
// stays in the ledger: deleting inventory does not refund it.
//
// The cascade is issued as explicit batched updates; the schema has no
// ON DELETE rules for soft deletes.
func (c *Coordinator) DeleteBatch(ctx context.Context, batchID string, userID ledger.UserID) (Batch, error) {
	var batch Batch
	var items, costs int64
	err := c.run(ctx, "delete_batch", userID, logrus.Fields{"batch_id": batchID}, func(u *unit) error {
		var err error
		batch, err = u.GetBatch(ctx, userID, batchID)
		if err != nil {
			return err
		}

		if err := u.SoftDeleteBatch(ctx, batch.ID, u.now); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
		if items, err = u.SoftDeleteItemsByBatch(ctx, batch.ID, u.now); err != nil {
			return fmt.Errorf("delete batch items: %w", err)
		}
		if costs, err = u.SoftDeleteCostsByBatch(ctx, batch.ID, u.now); err != nil {
			return fmt.Errorf("delete batch costs: %w", err)
		}

		at := u.now
		batch.DeletedAt = &at
		return nil
	})
	if err != nil {
		return Batch{}, err
	}

	c.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"batch_id": batch.ID,
		"items":    items,
		"costs":    costs,
	}).Info("batch deleted")
	return batch, nil
}
