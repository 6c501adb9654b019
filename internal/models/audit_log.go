package models

import "time"

type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionDelete     AuditAction = "delete"
	AuditActionTransition AuditAction = "transition" // changement de garde
)

// AuditLog: trace avant/après de chaque mutation. Journal strictement
// append-only: une fiche est un document légal, on ne revient pas en arrière,
// les corrections passent par de nouvelles transitions.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Fiche concernée (si applicable)
	FicheNumero *string `gorm:"size:32;index" json:"fiche_numero"`

	UserID   uint   `json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"` // dénormalisé

	// Entité métier: "fiche", "carcasse", "carcasse_intermediaire",
	// "fiche_intermediaire", "dispatch_group", "entite"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityKey  string `gorm:"size:100;index" json:"entity_key"` // clé métier, pas l'id technique

	Action AuditAction `gorm:"size:20" json:"action"`

	Description string `gorm:"size:255" json:"description"`

	// État avant et après (JSON)
	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}
