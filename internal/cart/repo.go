package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/deliverly/checkout-core/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The cart survives sessions as one opaque serialized row in the local
// sqlite store; format changes stay invisible to the rest of the engine.
type cartRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Payload   []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (cartRecord) TableName() string {
	return "cart_state"
}

const persistedCartID = 1

// Repository persists the cart snapshot between sessions.
type Repository struct {
	db *gorm.DB
}

// NewRepository prepares the cart_state table on the local store.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("cart repository requires a db handle")
	}
	if err := db.AutoMigrate(&cartRecord{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "migrate cart store")
	}
	return &Repository{db: db}, nil
}

// Save upserts the serialized snapshot.
func (r *Repository) Save(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "serialize cart")
	}
	record := cartRecord{ID: persistedCartID, Payload: payload}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&record).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	return nil
}

// Load reads the persisted snapshot; the second return is false when no cart
// has been saved yet.
func (r *Repository) Load(ctx context.Context) (Snapshot, bool, error) {
	var record cartRecord
	err := r.db.WithContext(ctx).First(&record, persistedCartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	var snapshot Snapshot
	if err := json.Unmarshal(record.Payload, &snapshot); err != nil {
		return Snapshot{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	return snapshot, true, nil
}

// Clear drops the persisted snapshot, used after a successful order.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Delete(&cartRecord{}, persistedCartID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear persisted cart")
	}
	return nil
}
