package syncengine

import "gibier-backend/internal/models"

// Listes d'autorisation par rôle et par entité: le jeu fermé des colonnes
// que chaque rôle peut écrire à son étape. La surface de mutation permise
// est une donnée, pas du contrôle de flux éparpillé. Tout champ hors liste
// est écarté en silence: un client obsolète ne peut pas corrompre des
// colonnes qu'il ne connaît pas.

const (
	EntityFiche                 = "fiche"
	EntityCarcasse              = "carcasse"
	EntityCarcasseIntermediaire = "carcasse_intermediaire"
)

var allowlists = map[models.UserRole]map[string][]string{
	models.RoleExaminateurInitial: {
		EntityFiche: {
			"date_mise_a_mort",
			"commune_mise_a_mort",
			"heure_mise_a_mort_premiere_carcasse",
			"heure_evisceration_derniere_carcasse",
			"examinateur_initial_approbation",
			"examinateur_initial_approbation_at",
		},
		EntityCarcasse: {
			"espece",
			"categorie",
			"nombre_animaux",
			"examinateur_sans_anomalie",
			"anomalies_carcasse",
			"anomalies_abats",
			"examinateur_signed_at",
		},
	},
	models.RolePremierDetenteur: {
		EntityFiche: {
			"depot_type",
			"depot_entite_id",
			"depot_date",
			"transport_type",
			"transport_date",
			"current_owner_wants_to_transfer",
		},
	},
	models.RoleCCG: {
		EntityFiche:                 {"current_owner_wants_to_transfer"},
		EntityCarcasseIntermediaire: {"decision", "motif_refus", "commentaire", "decision_at"},
	},
	models.RoleCollecteurPro: {
		EntityFiche:                 {"current_owner_wants_to_transfer"},
		EntityCarcasseIntermediaire: {"decision", "motif_refus", "commentaire", "decision_at"},
	},
	models.RoleETG: {
		EntityFiche:                 {"current_owner_wants_to_transfer"},
		EntityCarcasseIntermediaire: {"decision", "motif_refus", "commentaire", "decision_at"},
	},
	models.RoleSVI: {
		EntityCarcasse: {
			"svi_saisie",
			"svi_saisie_motifs",
			"svi_saisie_commentaire",
			"svi_signed_at",
		},
		EntityCarcasseIntermediaire: {"decision", "motif_refus", "commentaire", "decision_at"},
	},
}

// FilterPatch ne garde que les champs que ce rôle peut écrire sur cette
// entité. Les champs inconnus ou interdits tombent sans erreur.
func FilterPatch(role models.UserRole, entityType string, patch map[string]any) map[string]any {
	allowed := allowlists[role][entityType]
	if len(allowed) == 0 {
		return map[string]any{}
	}

	set := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		set[f] = true
	}

	filtered := make(map[string]any)
	for k, v := range patch {
		if set[k] {
			filtered[k] = v
		}
	}
	return filtered
}
