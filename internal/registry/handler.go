// Package registry expose les lectures de reporting aval: listing paginé
// des carcasses par autorité de traitement. Aucune mutation, le statut est
// recalculé par le résolveur à chaque lecture.
package registry

import (
	"time"

	"gibier-backend/internal/database"
	"gibier-backend/internal/ledger"
	"gibier-backend/internal/models"
	"gibier-backend/internal/status"

	"github.com/gofiber/fiber/v2"
)

type CarcasseRegistryItem struct {
	FicheNumero    string        `json:"fiche_numero"`
	NumeroBracelet string        `json:"numero_bracelet"`
	Espece         string        `json:"espece"`
	NombreAnimaux  int           `json:"nombre_animaux"`
	Statut         status.Statut `json:"statut"`
	UpdatedAt      time.Time     `json:"updated_at"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty"`
}

// GET /api/registry/carcasses?entite_id=&modified_since=&include_deleted=&page=&limit=
func ListCarcassesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Carcasse{}).
			Joins("JOIN fiches ON fiches.numero = carcasses.fiche_numero")

		if entiteID := c.QueryInt("entite_id", 0); entiteID > 0 {
			q = q.Where("carcasses.prochain_detenteur_entite_id = ? OR fiches.current_owner_entite_id = ?",
				entiteID, entiteID)
		}

		if since := c.Query("modified_since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				if t, err = time.Parse("2006-01-02", since); err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "Format modified_since: RFC3339 ou 'YYYY-MM-DD'")
				}
			}
			q = q.Where("carcasses.updated_at >= ?", t)
		}

		if !c.QueryBool("include_deleted", false) {
			q = q.Where("carcasses.deleted_at IS NULL")
		}

		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Comptage impossible")
		}

		var carcasses []models.Carcasse
		if err := q.Order("carcasses.updated_at DESC").
			Offset((page - 1) * limit).Limit(limit).
			Find(&carcasses).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture des carcasses impossible")
		}

		items := make([]CarcasseRegistryItem, 0, len(carcasses))
		for i := range carcasses {
			recs, err := ledger.RecordsForCarcasse(database.DB, carcasses[i].FicheNumero, carcasses[i].NumeroBracelet)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Lecture du registre impossible")
			}
			items = append(items, CarcasseRegistryItem{
				FicheNumero:    carcasses[i].FicheNumero,
				NumeroBracelet: carcasses[i].NumeroBracelet,
				Espece:         carcasses[i].Espece,
				NombreAnimaux:  carcasses[i].NombreAnimaux,
				Statut:         status.Resolve(&carcasses[i], recs),
				UpdatedAt:      carcasses[i].UpdatedAt,
				DeletedAt:      carcasses[i].DeletedAt,
			})
		}

		return c.JSON(fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
			"items": items,
		})
	}
}
