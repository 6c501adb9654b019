package fiche

import (
	"gibier-backend/internal/database"
	"gibier-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type EntiteRequest struct {
	Type          models.TypeEntite `json:"type"`
	RaisonSociale string            `json:"raison_sociale"`
	NumeroSiret   string            `json:"numero_siret"`
	Adresse       string            `json:"adresse"`
	CodePostal    string            `json:"code_postal"`
	Ville         string            `json:"ville"`
}

var typesEntite = map[models.TypeEntite]bool{
	models.TypeEntiteCCG:           true,
	models.TypeEntiteCollecteurPro: true,
	models.TypeEntiteETG:           true,
	models.TypeEntiteSVI:           true,
}

// POST /api/admin/entites
func CreateEntiteHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body EntiteRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}
		if !typesEntite[body.Type] {
			return fiber.NewError(fiber.StatusBadRequest, "Type d'entité invalide")
		}
		if body.RaisonSociale == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Raison sociale obligatoire")
		}

		entite := models.Entite{
			Type:          body.Type,
			RaisonSociale: body.RaisonSociale,
			NumeroSiret:   body.NumeroSiret,
			Adresse:       body.Adresse,
			CodePostal:    body.CodePostal,
			Ville:         body.Ville,
		}
		if err := database.DB.Create(&entite).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Création de l'entité impossible")
		}

		return c.Status(fiber.StatusCreated).JSON(entite)
	}
}

// GET /api/entites?type= — consultable par tout acteur authentifié, pour
// choisir un destinataire de transfert.
func ListEntitesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Entite{}).Order("raison_sociale")
		if t := c.Query("type"); t != "" {
			q = q.Where("type = ?", t)
		}

		var entites []models.Entite
		if err := q.Find(&entites).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture des entités impossible")
		}
		return c.JSON(entites)
	}
}

// PUT /api/admin/entites/:id
func UpdateEntiteHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var entite models.Entite
		if err := database.DB.First(&entite, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Entité introuvable")
		}

		var body EntiteRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}
		if !typesEntite[body.Type] {
			return fiber.NewError(fiber.StatusBadRequest, "Type d'entité invalide")
		}

		if err := database.DB.Model(&entite).Updates(map[string]any{
			"type":           body.Type,
			"raison_sociale": body.RaisonSociale,
			"numero_siret":   body.NumeroSiret,
			"adresse":        body.Adresse,
			"code_postal":    body.CodePostal,
			"ville":          body.Ville,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Mise à jour de l'entité impossible")
		}

		return c.JSON(entite)
	}
}
