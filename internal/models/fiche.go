package models

import "time"

// Fiche: document d'accompagnement d'une chasse (une fiche, plusieurs carcasses).
// Les pointeurs de garde (current/next/prev owner) ne sont mutés que par le
// package custody; une fois svi_signed_at posé la fiche est en lecture seule.
type Fiche struct {
	Numero string `gorm:"primaryKey;size:32"` // ex: FG-20260828-004

	// Métadonnées de mise à mort
	DateMiseAMort                     time.Time `gorm:"index;not null"`
	CommuneMiseAMort                  string    `gorm:"size:100"`
	HeureMiseAMortPremiereCarcasse    string    `gorm:"size:5"` // "HH:MM"
	HeureEviscerationDerniereCarcasse string    `gorm:"size:5"`

	// Examen initial
	ExaminateurInitialUserID        uint `gorm:"index;not null"`
	ExaminateurInitialApprobation   bool // approbation de mise sur le marché
	ExaminateurInitialApprobationAt *time.Time

	// Garde courante: toujours entièrement renseignée (rôle + user ou entité)
	CurrentOwnerRole     UserRole `gorm:"size:30;not null;index"`
	CurrentOwnerUserID   *uint    `gorm:"index"`
	CurrentOwnerEntiteID *uint    `gorm:"index"`

	// Transfert proposé, non confirmé: entièrement vide ou entièrement renseigné
	NextOwnerRole     *UserRole `gorm:"size:30"`
	NextOwnerUserID   *uint
	NextOwnerEntiteID *uint

	PrevOwnerRole     *UserRole `gorm:"size:30"`
	PrevOwnerUserID   *uint
	PrevOwnerEntiteID *uint

	CurrentOwnerWantsToTransfer bool

	// Déclaration dépôt/transport du premier détenteur. Depuis la répartition
	// multi-groupes ces colonnes ne sont qu'un miroir du premier groupe soumis,
	// conservées pour les anciens clients; jamais relues pour router.
	DepotType     *string `gorm:"size:20"` // "aucun" | "ccg"
	DepotEntiteID *uint
	DepotDate     *time.Time
	TransportType *string `gorm:"size:30"` // "premier_detenteur" | "destinataire"
	TransportDate *time.Time

	// Clôture vétérinaire: état terminal
	SviSignedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Carcasses      []Carcasse           `gorm:"foreignKey:FicheNumero;references:Numero"`
	Intermediaires []FicheIntermediaire `gorm:"foreignKey:FicheNumero;references:Numero"`
}

// Cloturee: plus aucune transition ni écriture n'est légale.
func (f *Fiche) Cloturee() bool {
	return f.SviSignedAt != nil
}
