package models

import "time"

type TypeEntite string

const (
	TypeEntiteCCG           TypeEntite = "ccg"            // centre de collecte du gibier (chambre froide)
	TypeEntiteCollecteurPro TypeEntite = "collecteur_pro" // collecteur professionnel
	TypeEntiteETG           TypeEntite = "etg"            // établissement de traitement du gibier
	TypeEntiteSVI           TypeEntite = "svi"            // service vétérinaire d'inspection
)

// Entite: établissement intervenant dans la chaîne (CCG, collecteur, ETG, SVI).
type Entite struct {
	ID            uint       `gorm:"primaryKey"`
	Type          TypeEntite `gorm:"size:20;not null;index"`
	RaisonSociale string     `gorm:"size:150;not null"`
	NumeroSiret   string     `gorm:"size:14;uniqueIndex"`
	Adresse       string     `gorm:"size:255"`
	CodePostal    string     `gorm:"size:10"`
	Ville         string     `gorm:"size:100"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Users []User
}
