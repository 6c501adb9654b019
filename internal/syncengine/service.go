// Package syncengine réconcilie les éditions accumulées hors-ligne avec la
// copie serveur. Fusion champ à champ sous liste d'autorisation, upsert
// idempotent sur la clé métier. Les transitions de garde ne passent JAMAIS
// par ici: elles ne sont pas commutatives et restent un check-then-set
// exclusif du package custody.
package syncengine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/audit"
	"gibier-backend/internal/ledger"
	"gibier-backend/internal/models"
	"gibier-backend/internal/notify"

	"gorm.io/gorm"
)

// alreadyApplied: rejeu d'une outbox au-moins-une-fois. On ne réapplique
// pas (et surtout on ne renotifie pas), le résultat serait identique.
func alreadyApplied(db *gorm.DB, patchID string) bool {
	if patchID == "" {
		return false
	}
	var count int64
	db.Model(&models.SyncPatch{}).Where("patch_id = ?", patchID).Count(&count)
	return count > 0
}

func recordPatch(tx *gorm.DB, patchID, entityType, entityKey string, userID uint) error {
	if patchID == "" {
		return nil
	}
	return tx.Create(&models.SyncPatch{
		PatchID:    patchID,
		EntityType: entityType,
		EntityKey:  entityKey,
		UserID:     userID,
		AppliedAt:  time.Now(),
	}).Error
}

// ApplyFichePatch applique un patch hors-ligne sur une fiche.
func ApplyFichePatch(db *gorm.DB, actorUserID uint, actorEntiteID *uint, actorRole models.UserRole,
	numero, patchID string, patch map[string]any) (*models.Fiche, error) {

	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable, édition locale à abandonner")
	}
	if alreadyApplied(db, patchID) {
		return &fiche, nil
	}
	if fiche.Cloturee() {
		return nil, apperr.Validation("Fiche clôturée par le SVI, plus aucune modification possible")
	}

	// Seul le détenteur courant écrit ses champs d'étape
	currentOwner := false
	if fiche.CurrentOwnerUserID != nil && *fiche.CurrentOwnerUserID == actorUserID {
		currentOwner = true
	}
	if fiche.CurrentOwnerEntiteID != nil && actorEntiteID != nil && *fiche.CurrentOwnerEntiteID == *actorEntiteID {
		currentOwner = true
	}
	if !currentOwner {
		return nil, apperr.Permission("Seul le détenteur courant peut modifier la fiche")
	}

	filtered := NormalizePatch(FilterPatch(actorRole, EntityFiche, patch))

	err := db.Transaction(func(tx *gorm.DB) error {
		if len(filtered) > 0 {
			if err := tx.Model(&fiche).Updates(filtered).Error; err != nil {
				return err
			}
		}
		if err := recordPatch(tx, patchID, EntityFiche, numero, actorUserID); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &numero,
			UserID:      actorUserID,
			EntityType:  EntityFiche,
			EntityKey:   numero,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Synchronisation hors-ligne: %d champ(s)", len(filtered)),
			After:       filtered,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, err
	}
	return &fiche, nil
}

// ApplyCarcassePatch applique un patch hors-ligne sur une carcasse, puis
// vérifie les invariants sur l'état fusionné.
func ApplyCarcassePatch(db *gorm.DB, actorUserID uint, actorEntiteID *uint, actorRole models.UserRole,
	bracelet, patchID string, patch map[string]any) (*models.Carcasse, error) {

	var carcasse models.Carcasse
	if err := db.First(&carcasse, "numero_bracelet = ?", bracelet).Error; err != nil {
		return nil, apperr.NotFound("Carcasse introuvable, édition locale à abandonner")
	}

	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", carcasse.FicheNumero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable, édition locale à abandonner")
	}
	if alreadyApplied(db, patchID) {
		return &carcasse, nil
	}
	if fiche.Cloturee() {
		return nil, apperr.Validation("Fiche clôturée par le SVI, plus aucune modification possible")
	}

	currentOwner := false
	if fiche.CurrentOwnerUserID != nil && *fiche.CurrentOwnerUserID == actorUserID {
		currentOwner = true
	}
	if fiche.CurrentOwnerEntiteID != nil && actorEntiteID != nil && *fiche.CurrentOwnerEntiteID == *actorEntiteID {
		currentOwner = true
	}
	if !currentOwner {
		return nil, apperr.Permission("Seul le détenteur courant peut modifier la carcasse")
	}

	filtered := NormalizePatch(FilterPatch(actorRole, EntityCarcasse, patch))
	if err := checkCarcasseInvariants(&carcasse, filtered); err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if len(filtered) > 0 {
			if err := tx.Model(&carcasse).Updates(filtered).Error; err != nil {
				return err
			}
		}
		if err := recordPatch(tx, patchID, EntityCarcasse, bracelet, actorUserID); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &carcasse.FicheNumero,
			UserID:      actorUserID,
			EntityType:  EntityCarcasse,
			EntityKey:   bracelet,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Synchronisation hors-ligne: %d champ(s)", len(filtered)),
			After:       filtered,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := db.First(&carcasse, "numero_bracelet = ?", bracelet).Error; err != nil {
		return nil, err
	}
	return &carcasse, nil
}

// checkCarcasseInvariants valide l'état une fois le patch posé: listes
// d'anomalies et "sans anomalie" exclusifs, saisie et motifs co-requis.
func checkCarcasseInvariants(current *models.Carcasse, filtered map[string]any) error {
	sansAnomalie := current.ExaminateurSansAnomalie != nil && *current.ExaminateurSansAnomalie
	if v, ok := filtered["examinateur_sans_anomalie"]; ok {
		b, _ := v.(bool)
		sansAnomalie = b
	}
	anomalies := len(current.AnomaliesCarcasse) + len(current.AnomaliesAbats)
	if v, ok := filtered["anomalies_carcasse"]; ok {
		anomalies = listLen(v) + len(current.AnomaliesAbats)
	}
	if v, ok := filtered["anomalies_abats"]; ok {
		base := len(current.AnomaliesCarcasse)
		if w, ok2 := filtered["anomalies_carcasse"]; ok2 {
			base = listLen(w)
		}
		anomalies = base + listLen(v)
	}
	if sansAnomalie && anomalies > 0 {
		return apperr.Validation("Anomalies et 'sans anomalie' sont exclusifs")
	}

	saisie := current.SviSaisie
	if v, ok := filtered["svi_saisie"]; ok {
		b, _ := v.(bool)
		saisie = b
	}
	motifs := len(current.SviSaisieMotifs)
	if v, ok := filtered["svi_saisie_motifs"]; ok {
		motifs = listLen(v)
	}
	if saisie && motifs == 0 {
		return apperr.Validation("Motifs de saisie obligatoires quand la saisie est posée")
	}
	if !saisie && motifs > 0 {
		return apperr.Validation("Motifs de saisie sans flag de saisie")
	}

	return nil
}

func listLen(v any) int {
	switch vv := v.(type) {
	case models.StringList:
		return len(vv)
	case []string:
		return len(vv)
	case []any:
		return len(vv)
	default:
		return 0
	}
}

// ApplyLedgerPatch applique une décision d'intermédiaire mise en file
// hors-ligne. Le dossier peut être créé EN AVANCE de la prise en charge
// officielle (aucun ordre garanti entre entités côté outbox) et sera
// réconcilié quand l'épisode se matérialisera. Mêmes règles de fond que
// l'écriture en ligne: épisode ouvert, motif au catalogue, périmètre.
func ApplyLedgerPatch(db *gorm.DB, actorUserID uint, actorEntiteID *uint, actorRole models.UserRole,
	intermediaireID, bracelet, patchID string, patch map[string]any) (*models.CarcasseIntermediaire, error) {

	// L'épisode appartient-il à l'acteur ? S'il n'existe pas encore, le
	// préfixe de l'identifiant déterministe doit être son user id.
	var fi models.FicheIntermediaire
	ficheNumero := ""
	if err := db.First(&fi, "id = ?", intermediaireID).Error; err == nil {
		if fi.UtilisateurID != actorUserID {
			return nil, apperr.Permission("Cet épisode appartient à un autre intermédiaire")
		}
		ficheNumero = fi.FicheNumero
	} else {
		parts := strings.SplitN(intermediaireID, "_", 3)
		if len(parts) != 3 {
			return nil, apperr.Validation("Identifiant d'épisode invalide")
		}
		uid, convErr := strconv.ParseUint(parts[0], 10, 32)
		if convErr != nil || uint(uid) != actorUserID {
			return nil, apperr.Permission("Cet épisode appartient à un autre intermédiaire")
		}
		ficheNumero = parts[1]
		// Épisode pas encore matérialisé: on valide sur son futur contour
		fi = models.FicheIntermediaire{
			ID:            intermediaireID,
			FicheNumero:   ficheNumero,
			Role:          actorRole,
			UtilisateurID: actorUserID,
			EntiteID:      actorEntiteID,
		}
	}

	var carcasse models.Carcasse
	if err := db.First(&carcasse, "numero_bracelet = ? AND fiche_numero = ?", bracelet, ficheNumero).Error; err != nil {
		return nil, apperr.NotFound("Carcasse introuvable, édition locale à abandonner")
	}

	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", ficheNumero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable, édition locale à abandonner")
	}

	var rec models.CarcasseIntermediaire
	if alreadyApplied(db, patchID) {
		db.Where("fiche_numero = ? AND numero_bracelet = ? AND fiche_intermediaire_id = ?",
			ficheNumero, bracelet, intermediaireID).First(&rec)
		return &rec, nil
	}
	if fiche.Cloturee() {
		return nil, apperr.Validation("Fiche clôturée par le SVI, plus aucune modification possible")
	}

	filtered := NormalizePatch(FilterPatch(actorRole, EntityCarcasseIntermediaire, patch))

	// Validation sur l'état fusionné: le patch peut ne porter que le motif
	// ou le commentaire, la décision effective reste alors celle du dossier.
	var existing models.CarcasseIntermediaire
	db.Where("fiche_numero = ? AND numero_bracelet = ? AND fiche_intermediaire_id = ?",
		ficheNumero, bracelet, intermediaireID).First(&existing)
	decision := existing.Decision
	if decision == "" {
		decision = models.DecisionEnCours
	}
	motif := existing.MotifRefus
	_, decisionPatched := filtered["decision"]
	if v, ok := filtered["decision"].(string); ok {
		decision = models.DecisionIntermediaire(v)
	}
	if v, ok := filtered["motif_refus"].(string); ok {
		motif = v
	}
	motif, err := ledger.ValidateDecision(db, &fi, bracelet, decision, motif)
	if err != nil {
		return nil, err
	}
	if len(filtered) > 0 {
		filtered["decision"] = decision
		filtered["motif_refus"] = motif
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.CarcasseIntermediaire{
			FicheNumero:          ficheNumero,
			NumeroBracelet:       bracelet,
			FicheIntermediaireID: intermediaireID,
		}).FirstOrCreate(&rec).Error; err != nil {
			return err
		}
		if len(filtered) > 0 {
			if err := tx.Model(&rec).Updates(filtered).Error; err != nil {
				return err
			}
			if err := ledger.RebuildMirror(tx, ficheNumero, bracelet); err != nil {
				return err
			}
		}
		if err := recordPatch(tx, patchID, EntityCarcasseIntermediaire,
			ficheNumero+"/"+bracelet+"/"+intermediaireID, actorUserID); err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &ficheNumero,
			UserID:      actorUserID,
			EntityType:  EntityCarcasseIntermediaire,
			EntityKey:   ficheNumero + "/" + bracelet + "/" + intermediaireID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Synchronisation hors-ligne: %d champ(s)", len(filtered)),
			After:       filtered,
		})
	})
	if err != nil {
		return nil, err
	}

	// Même signal que l'écriture en ligne; le rejeu est sorti plus haut,
	// pas de double publication.
	if decisionPatched && decision != models.DecisionEnCours {
		notify.Publish(notify.Event{
			Type:        notify.EventDecisionEnregistree,
			FicheNumero: ficheNumero,
			Bracelet:    bracelet,
			ActorUserID: actorUserID,
			Payload:     map[string]any{"decision": decision},
		})
	}

	if err := db.Where("fiche_numero = ? AND numero_bracelet = ? AND fiche_intermediaire_id = ?",
		ficheNumero, bracelet, intermediaireID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
