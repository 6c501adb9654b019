package catalogs

import (
	"log"

	"gibier-backend/internal/models"

	"gorm.io/gorm"
)

var especes = []models.Espece{
	{Nom: "Cerf élaphe", Categorie: models.CategorieGrandGibier},
	{Nom: "Chevreuil", Categorie: models.CategorieGrandGibier},
	{Nom: "Daim", Categorie: models.CategorieGrandGibier},
	{Nom: "Sanglier", Categorie: models.CategorieGrandGibier},
	{Nom: "Mouflon", Categorie: models.CategorieGrandGibier},
	{Nom: "Chamois", Categorie: models.CategorieGrandGibier},
	{Nom: "Lièvre d'Europe", Categorie: models.CategoriePetitGibier},
	{Nom: "Lapin de garenne", Categorie: models.CategoriePetitGibier},
	{Nom: "Faisans", Categorie: models.CategoriePetitGibier},
	{Nom: "Perdrix", Categorie: models.CategoriePetitGibier},
	{Nom: "Pigeons", Categorie: models.CategoriePetitGibier},
	{Nom: "Canards colverts", Categorie: models.CategoriePetitGibier},
}

var motifsRefus = []string{
	"Présence de souillures",
	"Odeur anormale",
	"Aspect anormal de la carcasse",
	"Délai de transport dépassé",
	"Température non conforme",
	"Absence d'éviscération",
	"Bracelet illisible ou absent",
}

var motifsSaisie = []string{
	"Abcès multiples",
	"Lésions évocatrices de tuberculose",
	"Parasitisme massif",
	"Souillure étendue",
	"Odeur anormale",
	"Cachexie",
	"Putréfaction",
}

// Seed alimente les catalogues de référence, idempotent au redémarrage.
func Seed(db *gorm.DB) {
	for _, e := range especes {
		if err := db.Where("nom = ?", e.Nom).FirstOrCreate(&models.Espece{}, e).Error; err != nil {
			log.Printf("Seed espèce %q: %v", e.Nom, err)
		}
	}
	for _, m := range motifsRefus {
		if err := db.Where("libelle = ?", m).FirstOrCreate(&models.MotifRefus{}, models.MotifRefus{Libelle: m}).Error; err != nil {
			log.Printf("Seed motif de refus %q: %v", m, err)
		}
	}
	for _, m := range motifsSaisie {
		if err := db.Where("libelle = ?", m).FirstOrCreate(&models.MotifSaisie{}, models.MotifSaisie{Libelle: m}).Error; err != nil {
			log.Printf("Seed motif de saisie %q: %v", m, err)
		}
	}
}

// MotifRefusValide vérifie qu'un motif de refus vient bien du catalogue.
func MotifRefusValide(db *gorm.DB, libelle string) bool {
	var count int64
	db.Model(&models.MotifRefus{}).Where("libelle = ?", libelle).Count(&count)
	return count > 0
}

// MotifSaisieValide vérifie qu'un motif de saisie vient bien du catalogue.
func MotifSaisieValide(db *gorm.DB, libelle string) bool {
	var count int64
	db.Model(&models.MotifSaisie{}).Where("libelle = ?", libelle).Count(&count)
	return count > 0
}
