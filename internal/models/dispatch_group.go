package models

import "time"

type TypeDestinataire string

const (
	DestinataireETG               TypeDestinataire = "etg"
	DestinataireCCG               TypeDestinataire = "ccg"
	DestinataireCollecteurPro     TypeDestinataire = "collecteur_pro"
	DestinataireConsommateurFinal TypeDestinataire = "consommateur_final"
	DestinataireCommerceDetail    TypeDestinataire = "commerce_detail"
	DestinataireRepasAssociatif   TypeDestinataire = "repas_associatif"
)

// SansTransport: circuits courts sans obligation de mode de transport.
func (t TypeDestinataire) SansTransport() bool {
	return t == DestinataireConsommateurFinal || t == DestinataireCommerceDetail || t == DestinataireRepasAssociatif
}

// RoleDestinataire: rôle de garde correspondant, vide pour les circuits courts
// qui sortent de la chaîne sans nouveau gardien.
func (t TypeDestinataire) RoleDestinataire() UserRole {
	switch t {
	case DestinataireETG:
		return RoleETG
	case DestinataireCCG:
		return RoleCCG
	case DestinataireCollecteurPro:
		return RoleCollecteurPro
	default:
		return ""
	}
}

// DispatchGroup: sous-ensemble disjoint des carcasses d'un détenteur routé
// vers un destinataire simultané, avec son propre dépôt et transport.
// L'affectation d'une carcasse est exclusive par construction (une seule
// colonne dispatch_group_id sur la carcasse).
type DispatchGroup struct {
	ID          uint   `gorm:"primaryKey"`
	FicheNumero string `gorm:"size:32;index;not null"`

	TypeDestinataire     TypeDestinataire `gorm:"size:30"`
	DestinataireEntiteID *uint
	DestinataireUserID   *uint

	DepotType     string `gorm:"size:20;default:aucun"` // "aucun" | "ccg"
	DepotEntiteID *uint
	DepotDate     *time.Time

	TransportType string `gorm:"size:30"` // "premier_detenteur" | "destinataire"
	TransportDate *time.Time

	SubmittedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
