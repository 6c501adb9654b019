// Package ledger tient le registre d'instruction des intermédiaires: une
// décision par (fiche, bracelet, épisode), jamais supprimée, jamais écrasée
// par un autre acteur. Les champs miroir de la carcasse sont reconstruits
// depuis le registre à chaque écriture.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/audit"
	"gibier-backend/internal/catalogs"
	"gibier-backend/internal/models"
	"gibier-backend/internal/notify"

	"gorm.io/gorm"
)

// VisibleCarcasses: périmètre d'un épisode. Le SVI voit toute la fiche,
// un intermédiaire ne voit que les carcasses routées vers son entité par la
// répartition. Repli sur toute la fiche quand aucune répartition n'existe
// (cas dégénéré destinataire unique d'avant les groupes).
func VisibleCarcasses(db *gorm.DB, fi *models.FicheIntermediaire) ([]models.Carcasse, error) {
	var carcasses []models.Carcasse

	if fi.Role == models.RoleSVI {
		err := db.Where("fiche_numero = ? AND deleted_at IS NULL", fi.FicheNumero).
			Order("numero_bracelet").Find(&carcasses).Error
		return carcasses, err
	}

	if fi.EntiteID != nil {
		if err := db.Where("fiche_numero = ? AND deleted_at IS NULL AND prochain_detenteur_entite_id = ?",
			fi.FicheNumero, *fi.EntiteID).
			Order("numero_bracelet").Find(&carcasses).Error; err != nil {
			return nil, err
		}
		if len(carcasses) > 0 {
			return carcasses, nil
		}
	}

	var groupCount int64
	db.Model(&models.DispatchGroup{}).Where("fiche_numero = ?", fi.FicheNumero).Count(&groupCount)
	if groupCount > 0 {
		// Répartition en place et rien pour cette entité: périmètre vide
		return nil, nil
	}

	err := db.Where("fiche_numero = ? AND deleted_at IS NULL", fi.FicheNumero).
		Order("numero_bracelet").Find(&carcasses).Error
	return carcasses, err
}

// EnsureRecords matérialise un dossier "en cours de traitement" pour chaque
// carcasse visible de l'épisode. Commande explicite lancée à la confirmation
// de prise en charge: l'existence du dossier ne dépend pas de l'ordre
// d'affichage côté client. Idempotente.
func EnsureRecords(db *gorm.DB, fi *models.FicheIntermediaire) error {
	carcasses, err := VisibleCarcasses(db, fi)
	if err != nil {
		return err
	}

	for _, carc := range carcasses {
		rec := models.CarcasseIntermediaire{
			FicheNumero:          fi.FicheNumero,
			NumeroBracelet:       carc.NumeroBracelet,
			FicheIntermediaireID: fi.ID,
			Decision:             models.DecisionEnCours,
		}
		if err := db.Where(models.CarcasseIntermediaire{
			FicheNumero:          fi.FicheNumero,
			NumeroBracelet:       carc.NumeroBracelet,
			FicheIntermediaireID: fi.ID,
		}).FirstOrCreate(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

// ValidateDecision vérifie qu'une décision peut s'écrire sur ce dossier:
// épisode encore ouvert, motif conforme au catalogue pour un refus, carcasse
// dans le périmètre de l'épisode. Retourne le motif normalisé (vidé hors
// refus). Même contrat pour l'écriture en ligne et le rejeu hors-ligne.
func ValidateDecision(db *gorm.DB, fi *models.FicheIntermediaire, bracelet string,
	decision models.DecisionIntermediaire, motifRefus string) (string, error) {

	if fi.CheckFinishedAt != nil {
		return "", apperr.Validation("Contrôle déjà terminé, décisions figées")
	}

	switch decision {
	case models.DecisionAcceptee, models.DecisionManquante, models.DecisionEnCours:
		motifRefus = ""
	case models.DecisionRefusee:
		if motifRefus == "" {
			return "", apperr.Validation("Motif de refus obligatoire")
		}
		if !catalogs.MotifRefusValide(db, motifRefus) {
			return "", apperr.Validation(fmt.Sprintf("Motif de refus hors catalogue: %q", motifRefus))
		}
	default:
		return "", apperr.Validation("Décision invalide")
	}

	visibles, err := VisibleCarcasses(db, fi)
	if err != nil {
		return "", err
	}
	for i := range visibles {
		if visibles[i].NumeroBracelet == bracelet {
			return motifRefus, nil
		}
	}
	return "", apperr.Permission(fmt.Sprintf("La carcasse %s n'est pas dans votre périmètre", bracelet))
}

// RecordDecision enregistre ou remplace la décision d'un épisode sur une
// carcasse. Le remplacement est intégral: passer de refusée à acceptée ne
// laisse aucun motif résiduel.
func RecordDecision(db *gorm.DB, actorUserID uint, intermediaireID, bracelet string,
	decision models.DecisionIntermediaire, motifRefus, commentaire string) (*models.CarcasseIntermediaire, error) {

	var fi models.FicheIntermediaire
	if err := db.First(&fi, "id = ?", intermediaireID).Error; err != nil {
		return nil, apperr.NotFound("Épisode d'intermédiaire introuvable")
	}
	if fi.UtilisateurID != actorUserID {
		return nil, apperr.Permission("Cet épisode appartient à un autre intermédiaire")
	}

	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", fi.FicheNumero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable")
	}
	if fiche.Cloturee() {
		return nil, apperr.Validation("Fiche clôturée par le SVI, plus aucune modification possible")
	}

	// "En cours" est l'état initial du dossier, pas une décision à déposer
	if decision == models.DecisionEnCours {
		return nil, apperr.Validation("Décision invalide")
	}
	motifRefus, err := ValidateDecision(db, &fi, bracelet, decision, motifRefus)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var rec models.CarcasseIntermediaire

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.CarcasseIntermediaire{
			FicheNumero:          fi.FicheNumero,
			NumeroBracelet:       bracelet,
			FicheIntermediaireID: fi.ID,
		}).FirstOrCreate(&rec).Error; err != nil {
			return err
		}

		before := rec
		if err := tx.Model(&rec).Updates(map[string]any{
			"decision":    decision,
			"motif_refus": motifRefus,
			"commentaire": commentaire,
			"decision_at": now,
		}).Error; err != nil {
			return err
		}

		if err := RebuildMirror(tx, fi.FicheNumero, bracelet); err != nil {
			return err
		}

		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &fi.FicheNumero,
			UserID:      actorUserID,
			EntityType:  "carcasse_intermediaire",
			EntityKey:   fi.FicheNumero + "/" + bracelet + "/" + fi.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Décision %s sur la carcasse %s", decision, bracelet),
			Before:      before,
			After:       rec,
		})
	})
	if err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:        notify.EventDecisionEnregistree,
		FicheNumero: fi.FicheNumero,
		Bracelet:    bracelet,
		ActorUserID: actorUserID,
		Payload:     map[string]any{"decision": decision},
	})

	return &rec, nil
}

// RebuildMirror reconstruit les champs dénormalisés de la carcasse depuis
// l'ensemble du registre (pas seulement la décision qui vient d'être
// écrite). Mêmes entrées, même résultat: sans risque au rejeu.
func RebuildMirror(tx *gorm.DB, ficheNumero, bracelet string) error {
	var recs []models.CarcasseIntermediaire
	if err := tx.Where("fiche_numero = ? AND numero_bracelet = ?", ficheNumero, bracelet).
		Order("decision_at").Find(&recs).Error; err != nil {
		return err
	}

	updates := map[string]any{
		"intermediaire_manquante":       false,
		"intermediaire_refus_motif":     nil,
		"intermediaire_refus_par_id":    nil,
		"intermediaire_prise_en_charge": false,
		"intermediaire_signed_at":       nil,
	}

	for _, r := range recs {
		switch r.Decision {
		case models.DecisionManquante:
			updates["intermediaire_manquante"] = true
			updates["intermediaire_signed_at"] = r.DecisionAt
		case models.DecisionRefusee:
			if updates["intermediaire_manquante"] == false {
				updates["intermediaire_refus_motif"] = r.MotifRefus
				updates["intermediaire_refus_par_id"] = r.FicheIntermediaireID
				updates["intermediaire_signed_at"] = r.DecisionAt
			}
		case models.DecisionAcceptee:
			if updates["intermediaire_manquante"] == false && updates["intermediaire_refus_motif"] == nil {
				updates["intermediaire_prise_en_charge"] = true
				updates["intermediaire_signed_at"] = r.DecisionAt
			}
		}
	}

	return tx.Model(&models.Carcasse{}).
		Where("fiche_numero = ? AND numero_bracelet = ?", ficheNumero, bracelet).
		Updates(updates).Error
}

// CloseOut clôt l'épisode. Refusé tant qu'une carcasse visible reste en
// cours de traitement; le rejet nomme les bracelets indécis.
func CloseOut(db *gorm.DB, actorUserID uint, intermediaireID string) (*models.FicheIntermediaire, error) {
	var fi models.FicheIntermediaire
	if err := db.First(&fi, "id = ?", intermediaireID).Error; err != nil {
		return nil, apperr.NotFound("Épisode d'intermédiaire introuvable")
	}
	if fi.UtilisateurID != actorUserID {
		return nil, apperr.Permission("Cet épisode appartient à un autre intermédiaire")
	}
	if fi.CheckFinishedAt != nil {
		return &fi, nil // déjà clos, rejeu hors-ligne
	}

	indecis, err := UndecidedBracelets(db, &fi)
	if err != nil {
		return nil, err
	}
	if len(indecis) > 0 {
		return nil, apperr.Validation(
			"Carcasses encore en cours de traitement: " + strings.Join(indecis, ", "))
	}

	now := time.Now()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&fi).Update("check_finished_at", now).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &fi.FicheNumero,
			UserID:      actorUserID,
			EntityType:  "fiche_intermediaire",
			EntityKey:   fi.ID,
			Action:      models.AuditActionUpdate,
			Description: "Contrôle terminé",
			After:       fi,
		})
	})
	if err != nil {
		return nil, err
	}
	return &fi, nil
}

// UndecidedBracelets liste les carcasses visibles de l'épisode sans
// décision (critère de complétude: count(en_cours) == 0).
func UndecidedBracelets(db *gorm.DB, fi *models.FicheIntermediaire) ([]string, error) {
	carcasses, err := VisibleCarcasses(db, fi)
	if err != nil {
		return nil, err
	}

	var indecis []string
	for _, carc := range carcasses {
		var rec models.CarcasseIntermediaire
		err := db.Where("fiche_numero = ? AND numero_bracelet = ? AND fiche_intermediaire_id = ?",
			fi.FicheNumero, carc.NumeroBracelet, fi.ID).First(&rec).Error
		if err != nil || rec.Decision == models.DecisionEnCours {
			indecis = append(indecis, carc.NumeroBracelet)
		}
	}
	return indecis, nil
}

// RecordsForCarcasse: toutes les décisions du registre pour une carcasse,
// matière première du résolveur de statut.
func RecordsForCarcasse(db *gorm.DB, ficheNumero, bracelet string) ([]models.CarcasseIntermediaire, error) {
	var recs []models.CarcasseIntermediaire
	err := db.Where("fiche_numero = ? AND numero_bracelet = ?", ficheNumero, bracelet).
		Order("decision_at").Find(&recs).Error
	return recs, err
}
