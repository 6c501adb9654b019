package custody

import (
	"gibier-backend/internal/apperr"
	"gibier-backend/internal/auth"
	"gibier-backend/internal/database"

	"github.com/gofiber/fiber/v2"
)

type ProposeRequest struct {
	NextOwner OwnerRef `json:"next_owner"`
}

type ConfirmRequest struct {
	// Gardien courant tel que lu par le client, pour le contrôle optimiste
	SeenOwner OwnerRef `json:"seen_owner"`
}

// POST /api/fiches/:numero/transfert/propose
func ProposeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var body ProposeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		fiche, err := Propose(database.DB, actor.UserID, actor.EntiteID, c.Params("numero"), body.NextOwner)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiche)
	}
}

// POST /api/fiches/:numero/transfert/confirm
func ConfirmHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var body ConfirmRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		fiche, err := Confirm(database.DB, actor.UserID, actor.EntiteID, c.Params("numero"), body.SeenOwner)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiche)
	}
}

// POST /api/fiches/:numero/transfert/reject
func RejectHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		fiche, err := Reject(database.DB, actor.UserID, actor.EntiteID, c.Params("numero"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiche)
	}
}

// POST /api/fiches/:numero/transfert/request — passer la main à un tiers
func RequestTransferHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var body ProposeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		fiche, err := RequestTransfer(database.DB, actor.UserID, actor.EntiteID, c.Params("numero"), body.NextOwner)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiche)
	}
}

// POST /api/fiches/:numero/cloture — signature vétérinaire
func CloseHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		fiche, err := Close(database.DB, actor.UserID, actor.EntiteID, actor.Role, c.Params("numero"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiche)
	}
}
