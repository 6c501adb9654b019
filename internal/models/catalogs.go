package models

import "time"

// Catalogues de référence, alimentés au démarrage, consultés par la
// validation. En lecture seule pour le coeur métier.

type Espece struct {
	ID        uint              `gorm:"primaryKey"`
	Nom       string            `gorm:"size:60;uniqueIndex;not null"`
	Categorie CategorieCarcasse `gorm:"size:20;not null"`
	CreatedAt time.Time
}

type MotifRefus struct {
	ID        uint   `gorm:"primaryKey"`
	Libelle   string `gorm:"size:255;uniqueIndex;not null"`
	CreatedAt time.Time
}

type MotifSaisie struct {
	ID        uint   `gorm:"primaryKey"`
	Libelle   string `gorm:"size:255;uniqueIndex;not null"`
	CreatedAt time.Time
}
