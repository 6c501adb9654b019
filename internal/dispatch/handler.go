package dispatch

import (
	"strconv"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/auth"
	"gibier-backend/internal/database"
	"gibier-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AssignRequest struct {
	GroupID *uint `json:"group_id"` // null pour retirer l'affectation
}

// POST /api/fiches/:numero/groupes
func CreateGroupHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var body GroupParams
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		group, err := CreateGroup(database.DB, actor.UserID, actor.EntiteID, c.Params("numero"), body)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(group)
	}
}

// GET /api/fiches/:numero/groupes
func ListGroupsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var groups []models.DispatchGroup
		if err := database.DB.Where("fiche_numero = ?", c.Params("numero")).
			Order("id").Find(&groups).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture des groupes impossible")
		}
		return c.JSON(groups)
	}
}

// PUT /api/fiches/:numero/groupes/:id
func UpdateGroupHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		groupID, err := strconv.ParseUint(c.Params("id"), 10, 32)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Identifiant de groupe invalide")
		}

		var body GroupParams
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		group, err := UpdateGroup(database.DB, actor.UserID, actor.EntiteID, c.Params("numero"), uint(groupID), body)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(group)
	}
}

// DELETE /api/fiches/:numero/groupes/:id
func DeleteGroupHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		groupID, err := strconv.ParseUint(c.Params("id"), 10, 32)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Identifiant de groupe invalide")
		}

		if err := DeleteGroup(database.DB, actor.UserID, actor.EntiteID, c.Params("numero"), uint(groupID)); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PUT /api/fiches/:numero/carcasses/:bracelet/groupe
func AssignHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var body AssignRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		carcasse, err := Assign(database.DB, actor.UserID, actor.EntiteID,
			c.Params("numero"), c.Params("bracelet"), body.GroupID)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(carcasse)
	}
}

// POST /api/fiches/:numero/groupes/submit
func SubmitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		fiche, err := Submit(database.DB, actor.UserID, actor.EntiteID, actor.Role, c.Params("numero"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiche)
	}
}
