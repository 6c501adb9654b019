package fiche

import (
	"fmt"
	"time"

	"gibier-backend/internal/auth"
	"gibier-backend/internal/database"
	"gibier-backend/internal/ledger"
	"gibier-backend/internal/models"
	"gibier-backend/internal/status"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateFicheRequest struct {
	DateMiseAMort                     string `json:"date_mise_a_mort"` // "2026-08-28"
	CommuneMiseAMort                  string `json:"commune_mise_a_mort"`
	HeureMiseAMortPremiereCarcasse    string `json:"heure_mise_a_mort_premiere_carcasse"`
	HeureEviscerationDerniereCarcasse string `json:"heure_evisceration_derniere_carcasse"`
}

type CarcasseResponse struct {
	NumeroBracelet string        `json:"numero_bracelet"`
	Espece         string        `json:"espece"`
	Categorie      string        `json:"categorie"`
	NombreAnimaux  int           `json:"nombre_animaux"`
	Statut         status.Statut `json:"statut"`
}

// genereNumero: FG-YYYYMMDD-NNN, séquence du jour. Le décalage `attempt`
// saute les numéros perdus dans une course entre deux créations simultanées.
func genereNumero(db *gorm.DB, date time.Time, attempt int) (string, error) {
	prefix := "FG-" + date.Format("20060102")
	var count int64
	if err := db.Model(&models.Fiche{}).
		Where("numero LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", prefix, count+1+int64(attempt)), nil
}

// createFiche insère la fiche sous un numéro du jour. La séquence se lit
// hors verrou: une collision de clé primaire reste possible entre deux
// créations simultanées, on réessaie au numéro suivant.
func createFiche(db *gorm.DB, actorUserID uint, d time.Time, body CreateFicheRequest) (*models.Fiche, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		numero, err := genereNumero(db, d, attempt)
		if err != nil {
			return nil, err
		}

		userID := actorUserID
		fiche := models.Fiche{
			Numero:                            numero,
			DateMiseAMort:                     d,
			CommuneMiseAMort:                  body.CommuneMiseAMort,
			HeureMiseAMortPremiereCarcasse:    body.HeureMiseAMortPremiereCarcasse,
			HeureEviscerationDerniereCarcasse: body.HeureEviscerationDerniereCarcasse,
			ExaminateurInitialUserID:          userID,
			CurrentOwnerRole:                  models.RoleExaminateurInitial,
			CurrentOwnerUserID:                &userID,
		}
		if err := db.Create(&fiche).Error; err != nil {
			lastErr = err
			continue
		}
		return &fiche, nil
	}
	return nil, lastErr
}

// POST /api/fiches — l'examinateur initial crée la fiche et en prend la garde.
func CreateFicheHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		var body CreateFicheRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Corps de requête invalide")
		}

		if body.DateMiseAMort == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Date de mise à mort obligatoire")
		}
		d, err := time.Parse("2006-01-02", body.DateMiseAMort)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Format de date attendu: 'YYYY-MM-DD'")
		}

		fiche, err := createFiche(database.DB, actor.UserID, d, body)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Création de la fiche impossible")
		}

		return c.Status(fiber.StatusCreated).JSON(fiche)
	}
}

// GET /api/fiches — les fiches visibles de l'acteur: garde courante,
// transfert proposé vers lui, ou participation passée.
func ListFichesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.ActorFromCtx(c)
		if err != nil {
			return err
		}

		q := database.DB.Model(&models.Fiche{}).Distinct("fiches.*").
			Joins("LEFT JOIN fiche_intermediaires fi ON fi.fiche_numero = fiches.numero")

		if actor.EntiteID != nil {
			q = q.Where(
				"fiches.current_owner_user_id = ? OR fiches.next_owner_user_id = ? OR fiches.current_owner_entite_id = ? OR fiches.next_owner_entite_id = ? OR fi.utilisateur_id = ?",
				actor.UserID, actor.UserID, *actor.EntiteID, *actor.EntiteID, actor.UserID)
		} else {
			q = q.Where(
				"fiches.current_owner_user_id = ? OR fiches.next_owner_user_id = ? OR fi.utilisateur_id = ?",
				actor.UserID, actor.UserID, actor.UserID)
		}

		var fiches []models.Fiche
		if err := q.Order("fiches.created_at DESC").Find(&fiches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture des fiches impossible")
		}

		return c.JSON(fiches)
	}
}

// GET /api/fiches/:numero — la fiche, ses carcasses avec statut résolu et
// la traçabilité des épisodes (plus récent d'abord).
func GetFicheHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		numero := c.Params("numero")

		var fiche models.Fiche
		if err := database.DB.First(&fiche, "numero = ?", numero).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Fiche introuvable")
		}

		var carcasses []models.Carcasse
		if err := database.DB.Where("fiche_numero = ?", numero).
			Order("numero_bracelet").Find(&carcasses).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture des carcasses impossible")
		}

		carcassesResp := make([]CarcasseResponse, 0, len(carcasses))
		for i := range carcasses {
			recs, err := ledger.RecordsForCarcasse(database.DB, numero, carcasses[i].NumeroBracelet)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Lecture du registre impossible")
			}
			carcassesResp = append(carcassesResp, CarcasseResponse{
				NumeroBracelet: carcasses[i].NumeroBracelet,
				Espece:         carcasses[i].Espece,
				Categorie:      string(carcasses[i].Categorie),
				NombreAnimaux:  carcasses[i].NombreAnimaux,
				Statut:         status.Resolve(&carcasses[i], recs),
			})
		}

		var intermediaires []models.FicheIntermediaire
		if err := database.DB.Where("fiche_numero = ? AND deleted_at IS NULL", numero).
			Order("created_at DESC").Find(&intermediaires).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Lecture de la traçabilité impossible")
		}

		return c.JSON(fiber.Map{
			"fiche":          fiche,
			"carcasses":      carcassesResp,
			"intermediaires": intermediaires,
		})
	}
}

// POST /api/fiches/:numero/approbation — approbation de mise sur le marché
// par l'examinateur initial. Préalable à toute proposition de transfert.
func ApprobationHandler() fiber.Handler {
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
			return fiber.NewError(fiber.StatusForbidden, "Seul l'examinateur initial de la fiche peut approuver")
		}
		if fiche.CommuneMiseAMort == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Commune de mise à mort manquante")
		}
		if fiche.HeureMiseAMortPremiereCarcasse == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Heure de mise à mort de la première carcasse manquante")
		}

		now := time.Now()
		if err := database.DB.Model(&fiche).Updates(map[string]any{
			"examinateur_initial_approbation":    true,
			"examinateur_initial_approbation_at": now,
		}).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Approbation impossible")
		}

		return c.JSON(fiber.Map{"numero": fiche.Numero, "approbation": true, "approbation_at": now})
	}
}
