package database

import (
	"log"

	"gibier-backend/internal/config"
	"gibier-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Connexion à la base impossible: %v", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("Erreur AutoMigrate: %v", err)
	}

	log.Println("Connexion base de données OK. Migration terminée.")
}

// Migrate est séparé de Init pour être réutilisable sur la base de test.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Entite{},
		&models.User{},
		&models.Fiche{},
		&models.Carcasse{},
		&models.FicheIntermediaire{},
		&models.CarcasseIntermediaire{},
		&models.DispatchGroup{},
		&models.SyncPatch{},
		&models.AuditLog{},
		// Catalogues de référence
		&models.Espece{},
		&models.MotifRefus{},
		&models.MotifSaisie{},
	); err != nil {
		return err
	}

	backfillLegacyGroups(db)
	return nil
}

// Les fiches antérieures à la répartition multi-groupes portaient le
// destinataire unique sur la fiche elle-même. On matérialise le groupe
// implicite pour que la visibilité des intermédiaires passe toujours par
// les groupes (chemin unique de lecture).
func backfillLegacyGroups(db *gorm.DB) {
	if !db.Migrator().HasTable(&models.DispatchGroup{}) {
		return
	}

	var fiches []models.Fiche
	if err := db.
		Where("next_owner_role IS NOT NULL AND next_owner_entite_id IS NOT NULL").
		Find(&fiches).Error; err != nil {
		log.Printf("Backfill groupes: lecture fiches impossible (on continue): %v", err)
		return
	}

	for _, f := range fiches {
		var count int64
		db.Model(&models.DispatchGroup{}).Where("fiche_numero = ?", f.Numero).Count(&count)
		if count > 0 {
			continue
		}

		var typeDest models.TypeDestinataire
		switch *f.NextOwnerRole {
		case models.RoleETG:
			typeDest = models.DestinataireETG
		case models.RoleCCG:
			typeDest = models.DestinataireCCG
		case models.RoleCollecteurPro:
			typeDest = models.DestinataireCollecteurPro
		default:
			continue
		}

		depotType := "aucun"
		if f.DepotType != nil {
			depotType = *f.DepotType
		}
		transportType := ""
		if f.TransportType != nil {
			transportType = *f.TransportType
		}

		group := models.DispatchGroup{
			FicheNumero:          f.Numero,
			TypeDestinataire:     typeDest,
			DestinataireEntiteID: f.NextOwnerEntiteID,
			DepotType:            depotType,
			DepotEntiteID:        f.DepotEntiteID,
			DepotDate:            f.DepotDate,
			TransportType:        transportType,
			TransportDate:        f.TransportDate,
			SubmittedAt:          &f.UpdatedAt,
		}
		if err := db.Create(&group).Error; err != nil {
			log.Printf("Backfill groupes: fiche %s non migrée: %v", f.Numero, err)
			continue
		}
		db.Model(&models.Carcasse{}).
			Where("fiche_numero = ? AND dispatch_group_id IS NULL AND deleted_at IS NULL", f.Numero).
			Update("dispatch_group_id", group.ID)
		log.Printf("Backfill groupes: groupe implicite créé pour la fiche %s", f.Numero)
	}
}
