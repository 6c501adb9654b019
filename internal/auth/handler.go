package auth

import (
	"strings"

	"gibier-backend/internal/config"
	"gibier-backend/internal/database"
	"gibier-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Nom      string          `json:"nom"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
	EntiteID *uint           `json:"entite_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var rolesInscription = map[models.UserRole]bool{
	models.RoleExaminateurInitial: true,
	models.RolePremierDetenteur:   true,
	models.RoleCCG:                true,
	models.RoleCollecteurPro:      true,
	models.RoleETG:                true,
	models.RoleSVI:                true,
}

// POST /api/auth/register — le compte créé reste inactif jusqu'à
// activation par un administrateur.
func RegisterHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		if body.Email == "" || body.Password == "" || body.Nom == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Nom, email et mot de passe obligatoires")
		}
		if !rolesInscription[body.Role] {
			return fiber.NewError(fiber.StatusBadRequest, "Rôle invalide")
		}
		if body.Role.IsIntermediaire() && body.EntiteID == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Une entité est obligatoire pour ce rôle")
		}
		if body.EntiteID != nil {
			var entite models.Entite
			if err := database.DB.First(&entite, "id = ?", *body.EntiteID).Error; err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Entité introuvable")
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hachage du mot de passe impossible")
		}

		user := models.User{
			Nom:          body.Nom,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         body.Role,
			EntiteID:     body.EntiteID,
			Activated:    false,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Création du compte impossible")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":        user.ID,
			"email":     user.Email,
			"role":      user.Role,
			"activated": user.Activated,
		})
	}
}

// POST /api/auth/register-admin — refusé dès qu'un admin existe.
func RegisterAdminHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		if body.Email == "" || body.Password == "" || body.Nom == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Nom, email et mot de passe obligatoires")
		}

		var count int64
		database.DB.Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "Un administrateur existe déjà")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Hachage du mot de passe impossible")
		}

		user := models.User{
			Nom:          body.Nom,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
			Activated:    true,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Création du compte impossible")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.First(&user, "email = ?", body.Email).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email ou mot de passe incorrect")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email ou mot de passe incorrect")
		}

		if !user.Activated {
			return fiber.NewError(fiber.StatusForbidden, "Compte non activé, contactez l'administrateur")
		}

		token, err := GenerateToken(cfg.JWTSecret, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Génération du token impossible")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":        user.ID,
				"nom":       user.Nom,
				"email":     user.Email,
				"role":      user.Role,
				"entite_id": user.EntiteID,
			},
		})
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(CtxUserIDKey).(uint)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Utilisateur introuvable")
		}

		var user models.User
		if err := database.DB.Preload("Entite").First(&user, "id = ?", userID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Utilisateur introuvable")
		}

		return c.JSON(fiber.Map{
			"id":        user.ID,
			"nom":       user.Nom,
			"email":     user.Email,
			"role":      user.Role,
			"entite_id": user.EntiteID,
			"activated": user.Activated,
		})
	}
}

// POST /api/admin/users/:id/activate
func ActivateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Utilisateur introuvable")
		}

		if err := database.DB.Model(&user).Update("activated", true).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Activation impossible")
		}

		return c.JSON(fiber.Map{"id": user.ID, "activated": true})
	}
}
