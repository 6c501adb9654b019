package models

import "time"

type DecisionIntermediaire string

const (
	DecisionEnCours   DecisionIntermediaire = "en_cours_de_traitement"
	DecisionAcceptee  DecisionIntermediaire = "acceptee"
	DecisionRefusee   DecisionIntermediaire = "refusee"
	DecisionManquante DecisionIntermediaire = "manquante"
)

// CarcasseIntermediaire: la décision d'UN intermédiaire sur UNE carcasse.
// La clé composite inclut l'épisode, deux intermédiaires n'écrasent donc
// jamais la décision l'un de l'autre. Jamais supprimée.
type CarcasseIntermediaire struct {
	ID                   uint   `gorm:"primaryKey"`
	FicheNumero          string `gorm:"size:32;uniqueIndex:idx_ci_cle;not null"`
	NumeroBracelet       string `gorm:"size:32;uniqueIndex:idx_ci_cle;not null"`
	FicheIntermediaireID string `gorm:"size:64;uniqueIndex:idx_ci_cle;not null"`

	// Un changement de décision remplace ces trois champs en bloc,
	// pas de motif résiduel après passage de refusée à acceptée.
	Decision    DecisionIntermediaire `gorm:"size:30;not null;default:en_cours_de_traitement"`
	MotifRefus  string                `gorm:"size:255"`
	Commentaire string                `gorm:"size:500"`
	DecisionAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
