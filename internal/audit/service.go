package audit

import (
	"encoding/json"
	"fmt"

	"gibier-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	FicheNumero *string
	UserID      uint
	UserName    string
	EntityType  string
	EntityKey   string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog écrit une ligne d'audit sur la transaction du service appelant,
// pour que la trace tombe ou survive avec la mutation qu'elle décrit.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	// jsonb refuse la chaîne vide, on pose "null" par défaut
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		FicheNumero: opts.FicheNumero,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityKey:   opts.EntityKey,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("écriture du journal d'audit impossible: %w", err)
	}

	return nil
}
