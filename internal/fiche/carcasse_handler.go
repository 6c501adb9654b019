package fiche

import (
	"fmt"
	"time"

	"gibier-backend/internal/auth"
	"gibier-backend/internal/catalogs"
	"gibier-backend/internal/database"
	"gibier-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateCarcasseRequest struct {
	NumeroBracelet string                   `json:"numero_bracelet"`
	Espece         string                   `json:"espece"`
	Categorie      models.CategorieCarcasse `json:"categorie"`
	NombreAnimaux  int                      `json:"nombre_animaux"`
}

type ExamenRequest struct {
	SansAnomalie      *bool    `json:"sans_anomalie"`
	AnomaliesCarcasse []string `json:"anomalies_carcasse"`
	AnomaliesAbats    []string `json:"anomalies_abats"`
}

type SaisieRequest struct {
	Saisie      bool     `json:"saisie"`
	Motifs      []string `json:"motifs"`
	Commentaire string   `json:"commentaire"`
}

func loadFicheCarcasse(numero, bracelet string) (*models.Fiche, *models.Carcasse, error) {
	var fiche models.Fiche
	if err := database.DB.First(&fiche, "numero = ?", numero).Error; err != nil {
		return nil, nil, fiber.NewError(fiber.StatusNotFound, "Fiche introuvable")
	}
	var carcasse models.Carcasse
	if err := database.DB.First(&carcasse, "fiche_numero = ? AND numero_bracelet = ?", numero, bracelet).Error; err != nil {
		return nil, nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Carcasse %s introuvable sur cette fiche", bracelet))
	}
	return &fiche, &carcasse, nil
}

// POST /api/fiches/:numero/carcasses — le bracelet est posé avant toute
// donnée biologique.
func CreateCarcasseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var fiche models.Fiche
		if err := database.DB.First(&fiche, "numero = ?", c.Params("numero")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Fiche introuvable")
		}
		if fiche.Cloturee() {
			return fiber.NewError(fiber.StatusBadRequest, "Fiche clôturée par le SVI")
		}
		if fiche.ExaminateurInitialUserID != actor.UserID {
			return fiber.NewError(fiber.StatusForbidden, "Seul l'examinateur initial de la fiche peut ajouter une carcasse")
		}

		var body CreateCarcasseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}
		if body.NumeroBracelet == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Numéro de bracelet obligatoire")
		}
		if body.Categorie != models.CategorieGrandGibier && body.Categorie != models.CategoriePetitGibier {
			return fiber.NewError(fiber.StatusBadRequest, "Catégorie invalide: grand_gibier ou petit_gibier")
		}

		nombre := body.NombreAnimaux
		if nombre <= 0 {
			nombre = 1
		}
		if body.Categorie == models.CategorieGrandGibier && nombre != 1 {
			return fiber.NewError(fiber.StatusBadRequest, "Un lot n'est possible que pour le petit gibier")
		}

		carcasse := models.Carcasse{
			FicheNumero:    fiche.Numero,
			NumeroBracelet: body.NumeroBracelet,
			Espece:         body.Espece,
			Categorie:      body.Categorie,
			NombreAnimaux:  nombre,
		}
		if err := database.DB.Create(&carcasse).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Création impossible, bracelet %s déjà utilisé ?", body.NumeroBracelet))
		}

		return c.Status(fiber.StatusCreated).JSON(carcasse)
	}
}

// PUT /api/fiches/:numero/carcasses/:bracelet/examen — constat de
// l'examinateur initial, signe la carcasse.
func ExamenHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		fiche, carcasse, err := loadFicheCarcasse(c.Params("numero"), c.Params("bracelet"))
		if err != nil {
			return err
		}
		if fiche.Cloturee() {
			return fiber.NewError(fiber.StatusBadRequest, "Fiche clôturée par le SVI")
		}
		if fiche.ExaminateurInitialUserID != actor.UserID {
			return fiber.NewError(fiber.StatusForbidden, "Seul l'examinateur initial de la fiche peut signer l'examen")
		}

		var body ExamenRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		sansAnomalie := body.SansAnomalie != nil && *body.SansAnomalie
		if sansAnomalie && (len(body.AnomaliesCarcasse) > 0 || len(body.AnomaliesAbats) > 0) {
			return fiber.NewError(fiber.StatusBadRequest, "Anomalies et 'sans anomalie' sont exclusifs")
		}
		if !sansAnomalie && len(body.AnomaliesCarcasse) == 0 && len(body.AnomaliesAbats) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Constat obligatoire: anomalies ou 'sans anomalie'")
		}

		now := time.Now()
		if err := database.DB.Model(carcasse).Updates(map[string]any{
			"examinateur_sans_anomalie": sansAnomalie,
			"anomalies_carcasse":        models.StringList(body.AnomaliesCarcasse),
			"anomalies_abats":           models.StringList(body.AnomaliesAbats),
			"examinateur_signed_at":     now,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Enregistrement de l'examen impossible")
		}

		return c.JSON(carcasse)
	}
}

// PUT /api/fiches/:numero/carcasses/:bracelet/saisie — décision du SVI
// sur une carcasse: saisie (motifs co-requis) ou levée de saisie.
func SaisieHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		fiche, carcasse, err := loadFicheCarcasse(c.Params("numero"), c.Params("bracelet"))
		if err != nil {
			return err
		}
		if fiche.Cloturee() {
			return fiber.NewError(fiber.StatusBadRequest, "Fiche clôturée par le SVI")
		}
		if actor.Role != models.RoleSVI || fiche.CurrentOwnerRole != models.RoleSVI {
			return fiber.NewError(fiber.StatusForbidden, "Seul le SVI détenteur de la fiche peut saisir une carcasse")
		}

		var body SaisieRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		if body.Saisie {
			if len(body.Motifs) == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Motifs de saisie obligatoires")
			}
			for _, m := range body.Motifs {
				if !catalogs.MotifSaisieValide(database.DB, m) {
					return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Motif de saisie hors catalogue: %q", m))
				}
			}
		} else if len(body.Motifs) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Motifs de saisie sans flag de saisie")
		}

		now := time.Now()
		if err := database.DB.Model(carcasse).Updates(map[string]any{
			"svi_saisie":             body.Saisie,
			"svi_saisie_motifs":      models.StringList(body.Motifs),
			"svi_saisie_commentaire": body.Commentaire,
			"svi_signed_at":          now,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Enregistrement de la saisie impossible")
		}

		return c.JSON(carcasse)
	}
}

// DELETE /api/fiches/:numero/carcasses/:bracelet — suppression logique,
// interdite dès qu'un acteur aval a touché la carcasse.
func DeleteCarcasseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		fiche, carcasse, err := loadFicheCarcasse(c.Params("numero"), c.Params("bracelet"))
		if err != nil {
			return err
		}
		if fiche.Cloturee() {
			return fiber.NewError(fiber.StatusBadRequest, "Fiche clôturée par le SVI")
		}
		if fiche.ExaminateurInitialUserID != actor.UserID {
			return fiber.NewError(fiber.StatusForbidden, "Seul l'examinateur initial de la fiche peut retirer une carcasse")
		}

		var touches int64
		database.DB.Model(&models.CarcasseIntermediaire{}).
			Where("fiche_numero = ? AND numero_bracelet = ?", fiche.Numero, carcasse.NumeroBracelet).
			Where("decision <> ?", models.DecisionEnCours).
			Count(&touches)
		if touches > 0 || carcasse.SviSignedAt != nil {
			return fiber.NewError(fiber.StatusBadRequest,
				"Carcasse déjà instruite par un acteur aval, suppression impossible")
		}

		now := time.Now()
		if err := database.DB.Model(carcasse).Update("deleted_at", now).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Suppression impossible")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
