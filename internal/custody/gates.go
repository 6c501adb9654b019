package custody

import (
	"fmt"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/models"

	"gorm.io/gorm"
)

// Portes de complétude par rôle: un détenteur ne peut proposer de transfert
// que si son étape est finie. Chaque refus nomme le champ manquant exact.
func gatePropose(db *gorm.DB, fiche *models.Fiche, actorUserID uint) error {
	switch fiche.CurrentOwnerRole {
	case models.RoleExaminateurInitial:
		return gateExaminateur(db, fiche)
	case models.RolePremierDetenteur:
		return gatePremierDetenteur(db, fiche)
	case models.RoleCCG, models.RoleCollecteurPro, models.RoleETG:
		return gateIntermediaire(db, fiche, actorUserID)
	case models.RoleSVI:
		return apperr.Validation("Le SVI clôture la fiche, il ne la transfère pas")
	default:
		return apperr.Validation(fmt.Sprintf("Rôle de détenteur inconnu: %s", fiche.CurrentOwnerRole))
	}
}

func gateExaminateur(db *gorm.DB, fiche *models.Fiche) error {
	if fiche.CommuneMiseAMort == "" {
		return apperr.Validation("Commune de mise à mort manquante")
	}
	if fiche.HeureMiseAMortPremiereCarcasse == "" {
		return apperr.Validation("Heure de mise à mort de la première carcasse manquante")
	}
	if !fiche.ExaminateurInitialApprobation {
		return apperr.Validation("Approbation de mise sur le marché manquante")
	}

	var carcasses []models.Carcasse
	if err := db.Where("fiche_numero = ? AND deleted_at IS NULL", fiche.Numero).
		Order("numero_bracelet").Find(&carcasses).Error; err != nil {
		return err
	}
	if len(carcasses) == 0 {
		return apperr.Validation("Aucune carcasse sur la fiche")
	}
	for _, carc := range carcasses {
		if carc.ExaminateurSignedAt == nil {
			return apperr.Validation(fmt.Sprintf("Examen initial non signé pour la carcasse %s", carc.NumeroBracelet))
		}
	}
	return nil
}

// Le premier détenteur passe par la répartition (dispatch.Submit), qui pose
// elle-même next_owner. Un Propose direct n'est légal que si une répartition
// soumise existe déjà.
func gatePremierDetenteur(db *gorm.DB, fiche *models.Fiche) error {
	var count int64
	db.Model(&models.DispatchGroup{}).
		Where("fiche_numero = ? AND submitted_at IS NOT NULL", fiche.Numero).
		Count(&count)
	if count == 0 {
		return apperr.Validation("Répartition non soumise: destinataires, dépôt et transport à renseigner")
	}
	return nil
}

func gateIntermediaire(db *gorm.DB, fiche *models.Fiche, actorUserID uint) error {
	var fi models.FicheIntermediaire
	err := db.Where("fiche_numero = ? AND utilisateur_id = ? AND deleted_at IS NULL",
		fiche.Numero, actorUserID).
		Order("created_at DESC").First(&fi).Error
	if err != nil {
		return apperr.Validation("Aucun épisode de prise en charge pour cet utilisateur")
	}
	if fi.CheckFinishedAt == nil {
		return apperr.Validation("Contrôle non terminé: toutes les carcasses doivent être instruites avant transfert")
	}
	return nil
}
