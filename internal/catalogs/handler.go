package catalogs

import (
	"gibier-backend/internal/database"
	"gibier-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GET /api/catalogs/especes
func ListEspecesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var especes []models.Espece
		if err := database.DB.Order("nom").Find(&especes).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture du catalogue impossible")
		}
		return c.JSON(especes)
	}
}

// GET /api/catalogs/motifs-refus
func ListMotifsRefusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var motifs []models.MotifRefus
		if err := database.DB.Order("libelle").Find(&motifs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture du catalogue impossible")
		}
		return c.JSON(motifs)
	}
}

// GET /api/catalogs/motifs-saisie
func ListMotifsSaisieHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var motifs []models.MotifSaisie
		if err := database.DB.Order("libelle").Find(&motifs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture du catalogue impossible")
		}
		return c.JSON(motifs)
	}
}
