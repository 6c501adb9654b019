package models

import "time"

// SyncPatch: trace d'un patch hors-ligne déjà appliqué. La fusion champ à
// champ est idempotente en elle-même; cette table sert à détecter les rejeux
// (outbox au moins une fois) et à ne pas republier les notifications.
type SyncPatch struct {
	PatchID    string `gorm:"primaryKey;size:36"` // UUID généré par le client
	EntityType string `gorm:"size:40;index;not null"`
	EntityKey  string `gorm:"size:100;index;not null"`
	UserID     uint   `gorm:"not null"`
	AppliedAt  time.Time
}
