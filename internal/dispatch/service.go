// Package dispatch partitionne les carcasses d'un détenteur en groupes
// disjoints, chacun routé vers un destinataire simultané avec son propre
// dépôt et transport. L'exclusivité est garantie par construction: une seule
// colonne dispatch_group_id sur la carcasse, déplacer c'est retirer.
package dispatch

import (
	"fmt"
	"time"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/audit"
	"gibier-backend/internal/models"
	"gibier-backend/internal/notify"

	"gorm.io/gorm"
)

type GroupParams struct {
	TypeDestinataire     models.TypeDestinataire `json:"type_destinataire"`
	DestinataireEntiteID *uint                   `json:"destinataire_entite_id"`
	DestinataireUserID   *uint                   `json:"destinataire_user_id"`
	DepotType            string                  `json:"depot_type"`
	DepotEntiteID        *uint                   `json:"depot_entite_id"`
	DepotDate            *time.Time              `json:"depot_date"`
	TransportType        string                  `json:"transport_type"`
	TransportDate        *time.Time              `json:"transport_date"`
}

func loadFicheForHolder(db *gorm.DB, numero string, userID uint, entiteID *uint) (*models.Fiche, error) {
	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable")
	}
	if fiche.Cloturee() {
		return nil, apperr.Validation("Fiche clôturée par le SVI, plus aucune modification possible")
	}
	if fiche.CurrentOwnerUserID != nil && *fiche.CurrentOwnerUserID == userID {
		return &fiche, nil
	}
	if fiche.CurrentOwnerEntiteID != nil && entiteID != nil && *fiche.CurrentOwnerEntiteID == *entiteID {
		return &fiche, nil
	}
	return nil, apperr.Permission("Seul le détenteur courant peut répartir les carcasses")
}

func CreateGroup(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string, params GroupParams) (*models.DispatchGroup, error) {
	if _, err := loadFicheForHolder(db, numero, actorUserID, actorEntiteID); err != nil {
		return nil, err
	}

	depotType := params.DepotType
	if depotType == "" {
		depotType = "aucun"
	}

	group := models.DispatchGroup{
		FicheNumero:          numero,
		TypeDestinataire:     params.TypeDestinataire,
		DestinataireEntiteID: params.DestinataireEntiteID,
		DestinataireUserID:   params.DestinataireUserID,
		DepotType:            depotType,
		DepotEntiteID:        params.DepotEntiteID,
		DepotDate:            params.DepotDate,
		TransportType:        params.TransportType,
		TransportDate:        params.TransportDate,
	}
	if err := db.Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func UpdateGroup(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string, groupID uint, params GroupParams) (*models.DispatchGroup, error) {
	if _, err := loadFicheForHolder(db, numero, actorUserID, actorEntiteID); err != nil {
		return nil, err
	}

	var group models.DispatchGroup
	if err := db.First(&group, "id = ? AND fiche_numero = ?", groupID, numero).Error; err != nil {
		return nil, apperr.NotFound("Groupe de répartition introuvable")
	}
	if group.SubmittedAt != nil {
		return nil, apperr.Validation("Groupe déjà soumis, modification impossible")
	}

	depotType := params.DepotType
	if depotType == "" {
		depotType = "aucun"
	}

	if err := db.Model(&group).Updates(map[string]any{
		"type_destinataire":      params.TypeDestinataire,
		"destinataire_entite_id": params.DestinataireEntiteID,
		"destinataire_user_id":   params.DestinataireUserID,
		"depot_type":             depotType,
		"depot_entite_id":        params.DepotEntiteID,
		"depot_date":             params.DepotDate,
		"transport_type":         params.TransportType,
		"transport_date":         params.TransportDate,
	}).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func DeleteGroup(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string, groupID uint) error {
	if _, err := loadFicheForHolder(db, numero, actorUserID, actorEntiteID); err != nil {
		return err
	}

	var group models.DispatchGroup
	if err := db.First(&group, "id = ? AND fiche_numero = ?", groupID, numero).Error; err != nil {
		return apperr.NotFound("Groupe de répartition introuvable")
	}
	if group.SubmittedAt != nil {
		return apperr.Validation("Groupe déjà soumis, suppression impossible")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Carcasse{}).
			Where("dispatch_group_id = ?", group.ID).
			Update("dispatch_group_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
}

// Assign affecte une carcasse à un groupe, en la retirant de tout autre
// groupe par le même geste. groupID nil retire l'affectation.
func Assign(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero, bracelet string, groupID *uint) (*models.Carcasse, error) {
	if _, err := loadFicheForHolder(db, numero, actorUserID, actorEntiteID); err != nil {
		return nil, err
	}

	var carcasse models.Carcasse
	if err := db.First(&carcasse, "fiche_numero = ? AND numero_bracelet = ? AND deleted_at IS NULL",
		numero, bracelet).Error; err != nil {
		return nil, apperr.NotFound(fmt.Sprintf("Carcasse %s introuvable sur cette fiche", bracelet))
	}

	if groupID != nil {
		var group models.DispatchGroup
		if err := db.First(&group, "id = ? AND fiche_numero = ?", *groupID, numero).Error; err != nil {
			return nil, apperr.NotFound("Groupe de répartition introuvable")
		}
		if group.SubmittedAt != nil {
			return nil, apperr.Validation("Groupe déjà soumis, affectation impossible")
		}
	}

	if err := db.Model(&carcasse).Update("dispatch_group_id", groupID).Error; err != nil {
		return nil, err
	}
	return &carcasse, nil
}

// missingForGroup: le champ manquant précis du contrôle de complétude,
// chaîne vide si le groupe est complet.
func missingForGroup(actorRole models.UserRole, g *models.DispatchGroup, memberCount int64, n int) string {
	if g.TypeDestinataire == "" {
		return fmt.Sprintf("groupe %d: type de destinataire manquant", n)
	}
	if memberCount == 0 {
		return fmt.Sprintf("groupe %d: aucune carcasse affectée", n)
	}
	if g.TypeDestinataire.RoleDestinataire() != "" && g.DestinataireEntiteID == nil {
		return fmt.Sprintf("groupe %d: destinataire manquant", n)
	}
	if g.DepotType == "ccg" {
		if g.DepotEntiteID == nil {
			return fmt.Sprintf("groupe %d: lieu de dépôt manquant", n)
		}
		if actorRole == models.RolePremierDetenteur && g.DepotDate == nil {
			return fmt.Sprintf("groupe %d: date de dépôt manquante", n)
		}
	}
	if !g.TypeDestinataire.SansTransport() {
		if g.TransportType == "" {
			return fmt.Sprintf("groupe %d: mode de transport manquant", n)
		}
		if g.TransportType == "premier_detenteur" && g.DepotType == "ccg" && g.TransportDate == nil {
			return fmt.Sprintf("groupe %d: date de transport manquante", n)
		}
	}
	return ""
}

// Submit vérifie la complétude de chaque groupe puis exécute la proposition
// de transfert pour tous. Seul le premier groupe portant un rôle de la
// chaîne est reflété sur les champs destinataire-unique de la fiche
// (compatibilité anciens clients); le cache destinataire de chaque carcasse
// est posé pour tous les groupes sans exception.
func Submit(db *gorm.DB, actorUserID uint, actorEntiteID *uint, actorRole models.UserRole, numero string) (*models.Fiche, error) {
	fiche, err := loadFicheForHolder(db, numero, actorUserID, actorEntiteID)
	if err != nil {
		return nil, err
	}

	var groups []models.DispatchGroup
	if err := db.Where("fiche_numero = ?", numero).Order("id").Find(&groups).Error; err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, apperr.Validation("Aucun groupe de répartition sur la fiche")
	}

	// Toute carcasse active doit être affectée à un groupe
	var orphelines []models.Carcasse
	if err := db.Where("fiche_numero = ? AND deleted_at IS NULL AND dispatch_group_id IS NULL", numero).
		Order("numero_bracelet").Find(&orphelines).Error; err != nil {
		return nil, err
	}
	if len(orphelines) > 0 {
		return nil, apperr.Validation(
			fmt.Sprintf("Carcasse non affectée à un groupe: %s", orphelines[0].NumeroBracelet))
	}

	memberCounts := make([]int64, len(groups))
	for i := range groups {
		db.Model(&models.Carcasse{}).
			Where("dispatch_group_id = ? AND deleted_at IS NULL", groups[i].ID).
			Count(&memberCounts[i])
		if msg := missingForGroup(actorRole, &groups[i], memberCounts[i], i+1); msg != "" {
			return nil, apperr.Validation(msg)
		}
	}

	now := time.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		mirrored := false
		for i := range groups {
			g := &groups[i]

			role := g.TypeDestinataire.RoleDestinataire()
			carcasseUpdates := map[string]any{
				"prochain_detenteur_role":      nil,
				"prochain_detenteur_entite_id": nil,
			}
			if role != "" {
				carcasseUpdates["prochain_detenteur_role"] = role
				carcasseUpdates["prochain_detenteur_entite_id"] = g.DestinataireEntiteID
			}
			if err := tx.Model(&models.Carcasse{}).
				Where("dispatch_group_id = ? AND deleted_at IS NULL", g.ID).
				Updates(carcasseUpdates).Error; err != nil {
				return err
			}

			if err := tx.Model(g).Update("submitted_at", now).Error; err != nil {
				return err
			}

			// Miroir destinataire-unique: premier groupe de la chaîne
			if !mirrored && role != "" {
				mirrored = true
				if err := tx.Model(fiche).Updates(map[string]any{
					"next_owner_role":                 role,
					"next_owner_user_id":              g.DestinataireUserID,
					"next_owner_entite_id":            g.DestinataireEntiteID,
					"depot_type":                      g.DepotType,
					"depot_entite_id":                 g.DepotEntiteID,
					"depot_date":                      g.DepotDate,
					"transport_type":                  g.TransportType,
					"transport_date":                  g.TransportDate,
					"current_owner_wants_to_transfer": false,
				}).Error; err != nil {
					return err
				}
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &numero,
			UserID:      actorUserID,
			EntityType:  "dispatch",
			EntityKey:   numero,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Répartition soumise: %d groupe(s)", len(groups)),
			After:       groups,
		})
	})
	if err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:        notify.EventGardeProposee,
		FicheNumero: numero,
		ActorUserID: actorUserID,
		Payload:     map[string]any{"groupes": len(groups)},
	})

	if err := db.First(fiche, "numero = ?", numero).Error; err != nil {
		return nil, err
	}
	return fiche, nil
}
