package syncengine

import (
	"errors"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/auth"
	"gibier-backend/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SyncRequest struct {
	// Identifiant d'idempotence généré par l'outbox du client
	PatchID string         `json:"patch_id"`
	Patch   map[string]any `json:"patch"`
}

// syncError: un introuvable dit explicitement au client d'abandonner le
// patch en file au lieu de le rejouer indéfiniment.
func syncError(c *fiber.Ctx, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind == apperr.KindNotFound {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   e.Message,
			"discard": true,
		})
	}
	return apperr.ToFiber(err)
}

func parseSyncRequest(c *fiber.Ctx) (SyncRequest, error) {
	var body SyncRequest
	if err := c.BodyParser(&body); err != nil {
		return body, fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
	}
	if body.PatchID == "" {
		body.PatchID = uuid.NewString()
	}
	return body, nil
}

// POST /api/sync/fiches/:numero
func SyncFicheHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		body, err := parseSyncRequest(c)
		if err != nil {
			return err
		}

		fiche, err := ApplyFichePatch(database.DB, actor.UserID, actor.EntiteID, actor.Role,
			c.Params("numero"), body.PatchID, body.Patch)
		if err != nil {
			return syncError(c, err)
		}
		return c.JSON(fiber.Map{"patch_id": body.PatchID, "fiche": fiche})
	}
}

// POST /api/sync/carcasses/:bracelet
func SyncCarcasseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		body, err := parseSyncRequest(c)
		if err != nil {
			return err
		}

		carcasse, err := ApplyCarcassePatch(database.DB, actor.UserID, actor.EntiteID, actor.Role,
			c.Params("bracelet"), body.PatchID, body.Patch)
		if err != nil {
			return syncError(c, err)
		}
		return c.JSON(fiber.Map{"patch_id": body.PatchID, "carcasse": carcasse})
	}
}

// POST /api/sync/intermediaires/:id/carcasses/:bracelet
func SyncLedgerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		body, err := parseSyncRequest(c)
		if err != nil {
			return err
		}

		rec, err := ApplyLedgerPatch(database.DB, actor.UserID, actor.EntiteID, actor.Role,
			c.Params("id"), c.Params("bracelet"), body.PatchID, body.Patch)
		if err != nil {
			return syncError(c, err)
		}
		return c.JSON(fiber.Map{"patch_id": body.PatchID, "record": rec})
	}
}
