package models

import "time"

type UserRole string

const (
	RoleAdmin              UserRole = "admin"
	RoleExaminateurInitial UserRole = "examinateur_initial"
	RolePremierDetenteur   UserRole = "premier_detenteur"
	RoleCCG                UserRole = "ccg"
	RoleCollecteurPro      UserRole = "collecteur_pro"
	RoleETG                UserRole = "etg"
	RoleSVI                UserRole = "svi"
)

// IsIntermediaire: rôles qui instruisent les carcasses via le registre
// (le SVI inclus, il décide carcasse par carcasse comme les autres).
func (r UserRole) IsIntermediaire() bool {
	return r == RoleCCG || r == RoleCollecteurPro || r == RoleETG || r == RoleSVI
}

type User struct {
	ID           uint `gorm:"primaryKey"`
	EntiteID     *uint
	Entite       *Entite
	Nom          string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:30;not null"`
	Activated    bool     `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
