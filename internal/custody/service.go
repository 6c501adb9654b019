// Package custody est la machine à états de la garde d'une fiche: un seul
// gardien courant à tout instant, transfert en deux temps (proposition puis
// prise en charge), clôture vétérinaire terminale. La ligne fiche est le
// point de sérialisation: chaque transition est un check-then-set sous
// transaction, et une prise en charge est rejetée (pas fusionnée) si la
// garde a bougé depuis la lecture du client.
package custody

import (
	"fmt"
	"strings"
	"time"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/audit"
	"gibier-backend/internal/ledger"
	"gibier-backend/internal/models"
	"gibier-backend/internal/notify"
	"gibier-backend/internal/status"

	"gorm.io/gorm"
)

// OwnerRef: désignation complète d'un gardien. Rôle + exactement un des
// deux identifiants (utilisateur ou entité).
type OwnerRef struct {
	Role     models.UserRole `json:"role"`
	UserID   *uint           `json:"user_id"`
	EntiteID *uint           `json:"entite_id"`
}

func (o OwnerRef) complete() bool {
	return o.Role != "" && (o.UserID != nil || o.EntiteID != nil)
}

func ptrEq(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// isCurrentOwner: l'acteur détient la garde s'il correspond au pointeur
// courant, par utilisateur ou par entité.
func isCurrentOwner(fiche *models.Fiche, userID uint, entiteID *uint) bool {
	if fiche.CurrentOwnerUserID != nil {
		return *fiche.CurrentOwnerUserID == userID
	}
	if fiche.CurrentOwnerEntiteID != nil {
		return entiteID != nil && *fiche.CurrentOwnerEntiteID == *entiteID
	}
	return false
}

func matchesNextOwner(fiche *models.Fiche, role models.UserRole, userID uint, entiteID *uint) bool {
	if fiche.NextOwnerRole == nil || *fiche.NextOwnerRole != role {
		return false
	}
	if fiche.NextOwnerUserID != nil {
		return *fiche.NextOwnerUserID == userID
	}
	if fiche.NextOwnerEntiteID != nil {
		return entiteID != nil && *fiche.NextOwnerEntiteID == *entiteID
	}
	return false
}

// Propose: le gardien courant désigne le prochain. Légal seulement une fois
// la porte de complétude de son rôle franchie.
func Propose(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string, next OwnerRef) (*models.Fiche, error) {
	return propose(db, actorUserID, actorEntiteID, numero, next, false)
}

// RequestTransfer: le gardien courant, au lieu de confirmer lui-même un
// transfert entrant, marque sa volonté de passer la main et propose un autre
// destinataire. La garde courante ne change pas; le marqueur est posé dans
// la même transaction que la proposition, rien n'est écrit si elle échoue.
func RequestTransfer(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string, next OwnerRef) (*models.Fiche, error) {
	return propose(db, actorUserID, actorEntiteID, numero, next, true)
}

func propose(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string, next OwnerRef, wantsToTransfer bool) (*models.Fiche, error) {
	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable")
	}
	if fiche.Cloturee() {
		return nil, apperr.Validation("Fiche clôturée par le SVI, plus aucune transition possible")
	}
	if !isCurrentOwner(&fiche, actorUserID, actorEntiteID) {
		return nil, apperr.Permission("Seul le détenteur courant peut proposer un transfert")
	}
	if !next.complete() {
		return nil, apperr.Validation("Prochain détenteur incomplet: rôle et destinataire obligatoires")
	}
	if err := gatePropose(db, &fiche, actorUserID); err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"next_owner_role":      next.Role,
			"next_owner_user_id":   next.UserID,
			"next_owner_entite_id": next.EntiteID,
		}
		if wantsToTransfer {
			updates["current_owner_wants_to_transfer"] = true
		}
		if err := tx.Model(&fiche).Updates(updates).Error; err != nil {
			return err
		}

		// Un intermédiaire qui relaie met à jour le cache destinataire des
		// carcasses de son périmètre, la partition aval reste intacte.
		if fiche.CurrentOwnerRole.IsIntermediaire() && actorEntiteID != nil && next.EntiteID != nil {
			nextRole := next.Role
			if err := tx.Model(&models.Carcasse{}).
				Where("fiche_numero = ? AND prochain_detenteur_entite_id = ? AND deleted_at IS NULL",
					numero, *actorEntiteID).
				Updates(map[string]any{
					"prochain_detenteur_role":      nextRole,
					"prochain_detenteur_entite_id": *next.EntiteID,
				}).Error; err != nil {
				return err
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &numero,
			UserID:      actorUserID,
			EntityType:  "fiche",
			EntityKey:   numero,
			Action:      models.AuditActionTransition,
			Description: fmt.Sprintf("Transfert proposé vers %s", next.Role),
			After:       next,
		})
	})
	if err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:        notify.EventGardeProposee,
		FicheNumero: numero,
		ActorUserID: actorUserID,
		Payload:     map[string]any{"next_owner_role": next.Role},
	})

	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, err
	}
	return &fiche, nil
}

// Confirm: le destinataire proposé prend la garde. `seen` est le gardien
// courant tel que le client l'avait lu: s'il a changé entre-temps la
// transition est rejetée en conflit, jamais fusionnée.
//
// Une répartition multi-groupes a plusieurs destinataires simultanés mais
// les pointeurs de garde de la fiche n'en suivent qu'un (le premier groupe
// de la chaîne). Les autres destinataires confirment ici aussi: leur prise
// en charge matérialise l'épisode et ses dossiers sur leur périmètre, sans
// toucher aux pointeurs de la fiche.
func Confirm(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string, seen OwnerRef) (*models.Fiche, error) {
	var fiche models.Fiche

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&fiche, "numero = ?", numero).Error; err != nil {
			return apperr.NotFound("Fiche introuvable")
		}
		if fiche.Cloturee() {
			return apperr.Validation("Fiche clôturée par le SVI, plus aucune transition possible")
		}

		var newRole models.UserRole
		if fiche.NextOwnerRole != nil && matchesNextOwner(&fiche, *fiche.NextOwnerRole, actorUserID, actorEntiteID) {
			// Contrôle optimiste: la garde a-t-elle bougé depuis la lecture ?
			if seen.Role != fiche.CurrentOwnerRole ||
				!ptrEq(seen.UserID, fiche.CurrentOwnerUserID) ||
				!ptrEq(seen.EntiteID, fiche.CurrentOwnerEntiteID) {
				return apperr.Conflict("Cette fiche a changé, veuillez recharger avant de reprendre la main")
			}

			newRole = *fiche.NextOwnerRole
			updates := map[string]any{
				"prev_owner_role":                 fiche.CurrentOwnerRole,
				"prev_owner_user_id":              fiche.CurrentOwnerUserID,
				"prev_owner_entite_id":            fiche.CurrentOwnerEntiteID,
				"current_owner_role":              newRole,
				"current_owner_user_id":           fiche.NextOwnerUserID,
				"current_owner_entite_id":         fiche.NextOwnerEntiteID,
				"next_owner_role":                 nil,
				"next_owner_user_id":              nil,
				"next_owner_entite_id":            nil,
				"current_owner_wants_to_transfer": false,
			}
			if err := tx.Model(&fiche).Updates(updates).Error; err != nil {
				return err
			}
		} else {
			// Destinataire secondaire: son entité doit être visée par un
			// groupe soumis de la répartition.
			var group models.DispatchGroup
			groupErr := apperr.Permission("Vous n'êtes pas le destinataire proposé de cette fiche")
			if fiche.NextOwnerRole == nil {
				groupErr = apperr.Validation("Aucun transfert en attente sur cette fiche")
			}
			if actorEntiteID == nil {
				return groupErr
			}
			if err := tx.Where("fiche_numero = ? AND submitted_at IS NOT NULL AND destinataire_entite_id = ?",
				numero, *actorEntiteID).First(&group).Error; err != nil {
				return groupErr
			}
			newRole = group.TypeDestinataire.RoleDestinataire()
			if newRole == "" {
				return apperr.Validation("Ce groupe sort de la chaîne, aucune prise en charge à confirmer")
			}
		}

		// La création de l'épisode et de ses dossiers est atomique avec la
		// prise en charge: l'existence des dossiers ne dépend pas du client.
		if newRole.IsIntermediaire() {
			fi := models.FicheIntermediaire{}
			err := tx.Where("fiche_numero = ? AND utilisateur_id = ? AND check_finished_at IS NULL AND deleted_at IS NULL",
				numero, actorUserID).First(&fi).Error
			if err != nil {
				fi = models.FicheIntermediaire{
					ID:            models.IntermediaireID(actorUserID, numero, time.Now()),
					FicheNumero:   numero,
					Role:          newRole,
					UtilisateurID: actorUserID,
					EntiteID:      actorEntiteID,
				}
				if err := tx.Create(&fi).Error; err != nil {
					return err
				}
			}
			if err := ledger.EnsureRecords(tx, &fi); err != nil {
				return err
			}
		}

		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &numero,
			UserID:      actorUserID,
			EntityType:  "fiche",
			EntityKey:   numero,
			Action:      models.AuditActionTransition,
			Description: fmt.Sprintf("Garde prise par %s", newRole),
			Before:      seen,
		})
	})
	if err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:        notify.EventGardeTransferee,
		FicheNumero: numero,
		ActorUserID: actorUserID,
	})

	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, err
	}
	return &fiche, nil
}

// Reject: le destinataire proposé décline, la garde reste au proposant qui
// devra proposer à nouveau.
func Reject(db *gorm.DB, actorUserID uint, actorEntiteID *uint, numero string) (*models.Fiche, error) {
	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable")
	}
	if fiche.NextOwnerRole == nil {
		return nil, apperr.Validation("Aucun transfert en attente sur cette fiche")
	}
	if !matchesNextOwner(&fiche, *fiche.NextOwnerRole, actorUserID, actorEntiteID) {
		return nil, apperr.Permission("Vous n'êtes pas le destinataire proposé de cette fiche")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&fiche).Updates(map[string]any{
			"next_owner_role":      nil,
			"next_owner_user_id":   nil,
			"next_owner_entite_id": nil,
		}).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &numero,
			UserID:      actorUserID,
			EntityType:  "fiche",
			EntityKey:   numero,
			Action:      models.AuditActionTransition,
			Description: "Transfert décliné par le destinataire",
		})
	})
	if err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:        notify.EventGardeRefusee,
		FicheNumero: numero,
		ActorUserID: actorUserID,
	})

	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, err
	}
	return &fiche, nil
}

// Close: signature vétérinaire. Seul le SVI détenteur courant, et seulement
// quand chaque carcasse a un statut terminal. État terminal de la fiche.
func Close(db *gorm.DB, actorUserID uint, actorEntiteID *uint, actorRole models.UserRole, numero string) (*models.Fiche, error) {
	var fiche models.Fiche
	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, apperr.NotFound("Fiche introuvable")
	}
	if fiche.Cloturee() {
		return nil, apperr.Validation("Fiche déjà clôturée")
	}
	if actorRole != models.RoleSVI || fiche.CurrentOwnerRole != models.RoleSVI {
		return nil, apperr.Permission("Seul le SVI détenteur de la fiche peut la clôturer")
	}
	if !isCurrentOwner(&fiche, actorUserID, actorEntiteID) {
		return nil, apperr.Permission("Seul le détenteur courant peut clôturer la fiche")
	}

	var carcasses []models.Carcasse
	if err := db.Where("fiche_numero = ?", numero).Find(&carcasses).Error; err != nil {
		return nil, err
	}

	var nonInstruites []string
	for i := range carcasses {
		recs, err := ledger.RecordsForCarcasse(db, numero, carcasses[i].NumeroBracelet)
		if err != nil {
			return nil, err
		}
		if s := status.Resolve(&carcasses[i], recs); !s.Terminal() {
			nonInstruites = append(nonInstruites, fmt.Sprintf("%s (%s)", carcasses[i].NumeroBracelet, s))
		}
	}
	if len(nonInstruites) > 0 {
		return nil, apperr.Validation("Carcasses non instruites: " + strings.Join(nonInstruites, ", "))
	}

	now := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&fiche).Update("svi_signed_at", now).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			FicheNumero: &numero,
			UserID:      actorUserID,
			EntityType:  "fiche",
			EntityKey:   numero,
			Action:      models.AuditActionTransition,
			Description: "Fiche clôturée par le SVI",
		})
	})
	if err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:        notify.EventFicheCloturee,
		FicheNumero: numero,
		ActorUserID: actorUserID,
	})

	if err := db.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, err
	}
	return &fiche, nil
}
