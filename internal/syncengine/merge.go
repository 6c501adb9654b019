package syncengine

import (
	"time"

	"gibier-backend/internal/models"
)

// Merge: fusion champ à champ, dernier écrivain gagnant par champ. Tout
// champ présent dans le patch écrase la valeur serveur, tout champ absent
// est repris tel quel du serveur. Pure et idempotente:
// Merge(Merge(s, p), p) == Merge(s, p).
func Merge(server, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(server)+len(patch))
	for k, v := range server {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// Colonnes datées et colonnes listes: le JSON du client livre des chaînes
// RFC3339 et des []any, la base attend time.Time et StringList.
var timeFields = map[string]bool{
	"date_mise_a_mort":                   true,
	"examinateur_initial_approbation_at": true,
	"depot_date":                         true,
	"transport_date":                     true,
	"examinateur_signed_at":              true,
	"svi_signed_at":                      true,
	"decision_at":                        true,
}

var listFields = map[string]bool{
	"anomalies_carcasse": true,
	"anomalies_abats":    true,
	"svi_saisie_motifs":  true,
}

// NormalizePatch convertit les valeurs JSON brutes vers les types colonnes.
// Les valeurs inconvertibles restent telles quelles, la base tranchera.
func NormalizePatch(patch map[string]any) map[string]any {
	out := make(map[string]any, len(patch))
	for k, v := range patch {
		switch {
		case timeFields[k]:
			out[k] = normalizeTime(v)
		case listFields[k]:
			out[k] = normalizeList(v)
		default:
			out[k] = v
		}
	}
	return out
}

func normalizeTime(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return v
}

func normalizeList(v any) any {
	switch vv := v.(type) {
	case []any:
		list := make(models.StringList, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	case []string:
		return models.StringList(vv)
	case models.StringList:
		return vv
	case nil:
		return models.StringList(nil)
	default:
		return v
	}
}
