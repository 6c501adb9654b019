package models

import (
	"fmt"
	"time"
)

// FicheIntermediaire: épisode de participation d'un acteur dans la chaîne,
// créé à la confirmation de prise en charge, clos par check_finished_at.
// La liste ordonnée par date décroissante forme la traçabilité de la fiche.
type FicheIntermediaire struct {
	ID            string   `gorm:"primaryKey;size:64"` // userID_ficheNumero_HHMMSS
	FicheNumero   string   `gorm:"size:32;index;not null"`
	Role          UserRole `gorm:"size:30;not null"`
	UtilisateurID uint     `gorm:"index;not null"`
	EntiteID      *uint    `gorm:"index"`

	CheckFinishedAt *time.Time // épisode clos, immuable ensuite
	DeletedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IntermediaireID: identifiant déterministe d'un épisode. La composante
// horaire garantit l'unicité par prise en charge tout en restant stable
// si la même confirmation est rejouée hors-ligne.
func IntermediaireID(userID uint, ficheNumero string, at time.Time) string {
	return fmt.Sprintf("%d_%s_%s", userID, ficheNumero, at.Format("150405"))
}
