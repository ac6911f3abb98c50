package ledger

import (
	"gorm.io/gorm"

	"predictpro/internal/domain"
)

// Record appends one activity entry. Callers inside a transaction pass the tx
// handle so the entry commits or rolls back with the balance change it
// describes.
func Record(db *gorm.DB, actorID uint, action string, amount *int64, details string) error {
	entry := domain.ActivityEntry{
		ActorID: actorID,
		Action:  action,
		Amount:  amount,
		Details: details,
	}
	return db.Create(&entry).Error
}

// ActivityFor returns the newest entries for one actor, for the audit views.
func ActivityFor(db *gorm.DB, actorID uint, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []domain.ActivityEntry
	err := db.Where("actor_id = ?", actorID).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
