package main

import (
	"log"
	"strings"

	"gibier-backend/internal/audit"
	"gibier-backend/internal/auth"
	"gibier-backend/internal/catalogs"
	"gibier-backend/internal/config"
	"gibier-backend/internal/custody"
	"gibier-backend/internal/database"
	"gibier-backend/internal/dispatch"
	"gibier-backend/internal/fiche"
	"gibier-backend/internal/ledger"
	"gibier-backend/internal/models"
	"gibier-backend/internal/registry"
	"gibier-backend/internal/syncengine"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)
	catalogs.Seed(database.DB)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Erreur inattendue:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Erreur serveur inattendue",
			})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Auth publique
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/register", auth.RegisterHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protégé
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Administration
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))
	adminRoutes.Post("/entites", fiche.CreateEntiteHandler())
	adminRoutes.Put("/entites/:id", fiche.UpdateEntiteHandler())
	adminRoutes.Post("/users/:id/activate", auth.ActivateUserHandler())
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())

	// Catalogues de référence
	protected.Get("/catalogs/especes", catalogs.ListEspecesHandler())
	protected.Get("/catalogs/motifs-refus", catalogs.ListMotifsRefusHandler())
	protected.Get("/catalogs/motifs-saisie", catalogs.ListMotifsSaisieHandler())

	// Entités (lecture pour choisir un destinataire)
	protected.Get("/entites", fiche.ListEntitesHandler())

	// Fiches
	protected.Post("/fiches", auth.RequireRole(models.RoleExaminateurInitial), fiche.CreateFicheHandler())
	protected.Get("/fiches", fiche.ListFichesHandler())
	protected.Get("/fiches/:numero", fiche.GetFicheHandler())
	protected.Post("/fiches/:numero/approbation", fiche.ApprobationHandler())

	// Carcasses
	protected.Post("/fiches/:numero/carcasses", fiche.CreateCarcasseHandler())
	protected.Put("/fiches/:numero/carcasses/:bracelet/examen", fiche.ExamenHandler())
	protected.Put("/fiches/:numero/carcasses/:bracelet/saisie", fiche.SaisieHandler())
	protected.Delete("/fiches/:numero/carcasses/:bracelet", fiche.DeleteCarcasseHandler())

	// Garde (machine à états)
	protected.Post("/fiches/:numero/transfert/propose", custody.ProposeHandler())
	protected.Post("/fiches/:numero/transfert/confirm", custody.ConfirmHandler())
	protected.Post("/fiches/:numero/transfert/reject", custody.RejectHandler())
	protected.Post("/fiches/:numero/transfert/request", custody.RequestTransferHandler())
	protected.Post("/fiches/:numero/cloture", auth.RequireRole(models.RoleSVI), custody.CloseHandler())

	// Répartition multi-destinataires
	protected.Post("/fiches/:numero/groupes", dispatch.CreateGroupHandler())
	protected.Get("/fiches/:numero/groupes", dispatch.ListGroupsHandler())
	protected.Put("/fiches/:numero/groupes/:id", dispatch.UpdateGroupHandler())
	protected.Delete("/fiches/:numero/groupes/:id", dispatch.DeleteGroupHandler())
	protected.Put("/fiches/:numero/carcasses/:bracelet/groupe", dispatch.AssignHandler())
	protected.Post("/fiches/:numero/groupes/submit", dispatch.SubmitHandler())

	// Registre des intermédiaires
	protected.Get("/intermediaires/:id/carcasses", ledger.ListVisibleCarcassesHandler())
	protected.Put("/intermediaires/:id/carcasses/:bracelet/decision", ledger.RecordDecisionHandler())
	protected.Post("/intermediaires/:id/check-finished", ledger.CloseOutHandler())

	// Synchronisation hors-ligne (outbox client)
	protected.Post("/sync/fiches/:numero", syncengine.SyncFicheHandler())
	protected.Post("/sync/carcasses/:bracelet", syncengine.SyncCarcasseHandler())
	protected.Post("/sync/intermediaires/:id/carcasses/:bracelet", syncengine.SyncLedgerHandler())

	// Reporting aval
	protected.Get("/registry/carcasses", auth.RequireRole(models.RoleAdmin, models.RoleSVI), registry.ListCarcassesHandler())

	log.Println("Serveur en écoute sur le port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
