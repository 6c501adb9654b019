package models

import "time"

type CategorieCarcasse string

const (
	CategorieGrandGibier CategorieCarcasse = "grand_gibier" // une carcasse = un animal
	CategoriePetitGibier CategorieCarcasse = "petit_gibier" // un lot homogène avec nombre d'animaux
)

// Carcasse: un animal ou un lot homogène de petit gibier. Le numéro de
// bracelet est la clé métier, posé avant toute donnée biologique.
// Chaque acteur n'écrit que les champs de son étape (voir syncengine/allowlist).
type Carcasse struct {
	ID             uint   `gorm:"primaryKey"`
	FicheNumero    string `gorm:"size:32;index;not null"`
	NumeroBracelet string `gorm:"size:32;uniqueIndex;not null"`

	Espece        string            `gorm:"size:60"`
	Categorie     CategorieCarcasse `gorm:"size:20;not null"`
	NombreAnimaux int               `gorm:"default:1"` // >1 seulement pour un lot de petit gibier

	// Examen initial: listes d'anomalies et "sans anomalie" mutuellement exclusifs
	ExaminateurSansAnomalie *bool
	AnomaliesCarcasse       StringList `gorm:"type:jsonb"`
	AnomaliesAbats          StringList `gorm:"type:jsonb"`
	ExaminateurSignedAt     *time.Time

	// Répartition par le détenteur courant
	DispatchGroupID           *uint     `gorm:"index"`
	ProchainDetenteurRole     *UserRole `gorm:"size:30"` // cache d'affichage, posé à la soumission
	ProchainDetenteurEntiteID *uint     `gorm:"index"`

	// Miroir de la dernière décision d'intermédiaire (reconstruit depuis le
	// registre à chaque écriture de décision, jamais édité directement)
	IntermediaireRefusMotif    *string `gorm:"size:255"`
	IntermediaireRefusParID    *string `gorm:"size:64"` // id d'épisode FicheIntermediaire
	IntermediaireManquante     bool
	IntermediaireSignedAt      *time.Time
	IntermediairePriseEnCharge bool

	// Saisie vétérinaire: flag et motifs non vides co-requis
	SviSaisie            bool
	SviSaisieMotifs      StringList `gorm:"type:jsonb"`
	SviSaisieCommentaire string     `gorm:"size:500"`
	SviSignedAt          *time.Time

	// Suppression logique; jamais de suppression physique après prise en charge aval
	DeletedAt *time.Time `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
