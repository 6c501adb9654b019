// Package status dérive le statut effectif d'une carcasse depuis les faits
// accumulés (champs de la carcasse + registre des intermédiaires). Dérivation
// pure: jamais persistée comme vérité, recalculable à tout moment. Les champs
// miroir de la carcasse ne sont que des caches de lecture.
package status

import "gibier-backend/internal/models"

type Statut string

const (
	StatutEnAttenteExamen Statut = "en_attente_examen"
	StatutEnCoursExamen   Statut = "en_cours_examen"
	StatutAcceptee        Statut = "acceptee"
	StatutRefusee         Statut = "refusee"
	StatutManquante       Statut = "manquante"
	StatutSaisie          Statut = "saisie"
	StatutSupprimee       Statut = "supprimee"
)

// Terminal: statuts qui autorisent la clôture vétérinaire de la fiche.
func (s Statut) Terminal() bool {
	switch s {
	case StatutAcceptee, StatutRefusee, StatutManquante, StatutSaisie, StatutSupprimee:
		return true
	}
	return false
}

// Resolve applique l'ordre total de priorité. Des faits contradictoires
// peuvent coexister (un intermédiaire accepte, un autre signale manquante):
// la première règle qui matche gagne, de haut en bas. Totale par
// construction, aucune combinaison n'est une erreur.
func Resolve(c *models.Carcasse, recs []models.CarcasseIntermediaire) Statut {
	// 1. Suppression logique
	if c.DeletedAt != nil {
		return StatutSupprimee
	}

	// 2. Saisie vétérinaire (flag + motifs co-requis)
	if c.SviSaisie && len(c.SviSaisieMotifs) > 0 {
		return StatutSaisie
	}

	// 3. Manquante, registre ou champ miroir
	if c.IntermediaireManquante {
		return StatutManquante
	}
	for _, r := range recs {
		if r.Decision == models.DecisionManquante {
			return StatutManquante
		}
	}

	// 4. Refusée (une carcasse aussi manquante est déjà sortie en 3)
	if c.IntermediaireRefusMotif != nil && *c.IntermediaireRefusMotif != "" {
		return StatutRefusee
	}
	for _, r := range recs {
		if r.Decision == models.DecisionRefusee {
			return StatutRefusee
		}
	}

	// 5. Acceptée seulement si le dernier passage est l'acceptation: un
	// dossier ouvert par un épisode postérieur (comparé sur la date de
	// création, decision_at est nul tant que rien n'est décidé) remet la
	// carcasse sous revue. Tout refus aurait déjà matché en 4.
	var acceptee *models.CarcasseIntermediaire
	for i := range recs {
		if recs[i].Decision == models.DecisionAcceptee {
			if acceptee == nil || recs[i].CreatedAt.After(acceptee.CreatedAt) {
				acceptee = &recs[i]
			}
		}
	}
	if acceptee != nil {
		for i := range recs {
			if recs[i].Decision == models.DecisionEnCours && recs[i].CreatedAt.After(acceptee.CreatedAt) {
				return StatutEnCoursExamen
			}
		}
		return StatutAcceptee
	}

	// 6. Sous revue: un intermédiaire a un dossier ouvert sans décision
	for _, r := range recs {
		if r.Decision == models.DecisionEnCours {
			return StatutEnCoursExamen
		}
	}

	// 7. Sinon: pas encore entrée dans le circuit des intermédiaires
	return StatutEnAttenteExamen
}
