package ledger

import (
	"gibier-backend/internal/apperr"
	"gibier-backend/internal/auth"
	"gibier-backend/internal/database"
	"gibier-backend/internal/models"
	"gibier-backend/internal/status"

	"github.com/gofiber/fiber/v2"
)

type DecisionRequest struct {
	Decision    models.DecisionIntermediaire `json:"decision"`
	MotifRefus  string                       `json:"motif_refus"`
	Commentaire string                       `json:"commentaire"`
}

type CarcasseVisibleResponse struct {
	NumeroBracelet string                       `json:"numero_bracelet"`
	Espece         string                       `json:"espece"`
	NombreAnimaux  int                          `json:"nombre_animaux"`
	Decision       models.DecisionIntermediaire `json:"decision"`
	MotifRefus     string                       `json:"motif_refus"`
	Commentaire    string                       `json:"commentaire"`
	Statut         status.Statut                `json:"statut"`
}

// GET /api/intermediaires/:id/carcasses — les carcasses du périmètre de
// l'épisode, avec la décision de CET épisode et le statut résolu.
func ListVisibleCarcassesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var fi models.FicheIntermediaire
		if err := database.DB.First(&fi, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Épisode d'intermédiaire introuvable")
		}
		if fi.UtilisateurID != actor.UserID {
			return fiber.NewError(fiber.StatusForbidden, "Cet épisode appartient à un autre intermédiaire")
		}

		carcasses, err := VisibleCarcasses(database.DB, &fi)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture des carcasses impossible")
		}

		resp := make([]CarcasseVisibleResponse, 0, len(carcasses))
		for i := range carcasses {
			carc := &carcasses[i]

			recs, err := RecordsForCarcasse(database.DB, fi.FicheNumero, carc.NumeroBracelet)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Lecture du registre impossible")
			}

			item := CarcasseVisibleResponse{
				NumeroBracelet: carc.NumeroBracelet,
				Espece:         carc.Espece,
				NombreAnimaux:  carc.NombreAnimaux,
				Decision:       models.DecisionEnCours,
				Statut:         status.Resolve(carc, recs),
			}
			for _, r := range recs {
				if r.FicheIntermediaireID == fi.ID {
					item.Decision = r.Decision
					item.MotifRefus = r.MotifRefus
					item.Commentaire = r.Commentaire
				}
			}
			resp = append(resp, item)
		}

		return c.JSON(resp)
	}
}

// PUT /api/intermediaires/:id/carcasses/:bracelet/decision
func RecordDecisionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var body DecisionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		rec, err := RecordDecision(database.DB, actor.UserID, c.Params("id"), c.Params("bracelet"),
			body.Decision, body.MotifRefus, body.Commentaire)
		if err != nil {
			return apperr.ToFiber(err)
		}

		return c.JSON(rec)
	}
}

// POST /api/intermediaires/:id/check-finished
func CloseOutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		fi, err := CloseOut(database.DB, actor.UserID, c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}

		return c.JSON(fiber.Map{
			"id":                fi.ID,
			"check_finished_at": fi.CheckFinishedAt,
		})
	}
}
