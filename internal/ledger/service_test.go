package ledger

import (
	"strings"
	"testing"
	"time"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/models"
	"gibier-backend/internal/status"
	"gibier-backend/internal/testutil"

	"gorm.io/gorm"
)

func uintPtr(v uint) *uint { return &v }

// seedEpisode: fiche détenue par un intermédiaire avec un épisode ouvert et
// ses dossiers en cours, comme au sortir d'une prise en charge confirmée.
func seedEpisode(t *testing.T, db *gorm.DB, numero string, userID uint, entiteID *uint,
	role models.UserRole, bracelets ...string) *models.FicheIntermediaire {
	t.Helper()

	fiche := models.Fiche{
		Numero:                   numero,
		DateMiseAMort:            time.Now(),
		ExaminateurInitialUserID: 1,
		CurrentOwnerRole:         role,
		CurrentOwnerEntiteID:     entiteID,
	}
	if err := db.FirstOrCreate(&fiche, models.Fiche{Numero: numero}).Error; err != nil {
		t.Fatalf("création fiche: %v", err)
	}
	for _, bracelet := range bracelets {
		carc := models.Carcasse{
			FicheNumero:    numero,
			NumeroBracelet: bracelet,
			Espece:         "Sanglier",
			Categorie:      models.CategorieGrandGibier,
		}
		if entiteID != nil && role != models.RoleSVI {
			carc.ProchainDetenteurRole = &role
			carc.ProchainDetenteurEntiteID = entiteID
		}
		if err := db.Create(&carc).Error; err != nil {
			t.Fatalf("création carcasse %s: %v", bracelet, err)
		}
	}

	fi := models.FicheIntermediaire{
		ID:            models.IntermediaireID(userID, numero, time.Now()),
		FicheNumero:   numero,
		Role:          role,
		UtilisateurID: userID,
		EntiteID:      entiteID,
	}
	if err := db.Create(&fi).Error; err != nil {
		t.Fatalf("création épisode: %v", err)
	}
	if err := EnsureRecords(db, &fi); err != nil {
		t.Fatalf("EnsureRecords: %v", err)
	}
	return &fi
}

func TestRecordDecisionRemplacementIntegral(t *testing.T) {
	db := testutil.SetupDB(t)
	fi := seedEpisode(t, db, "FG-L-001", 3, uintPtr(10), models.RoleETG, "FG-L-001-B1")

	rec, err := RecordDecision(db, 3, fi.ID, "FG-L-001-B1",
		models.DecisionRefusee, "Odeur anormale", "forte odeur")
	if err != nil {
		t.Fatalf("RecordDecision refus: %v", err)
	}
	if rec.MotifRefus != "Odeur anormale" {
		t.Errorf("motif non enregistré: %q", rec.MotifRefus)
	}

	// Changer d'avis remplace la décision en bloc: aucun motif résiduel
	rec, err = RecordDecision(db, 3, fi.ID, "FG-L-001-B1",
		models.DecisionAcceptee, "", "")
	if err != nil {
		t.Fatalf("RecordDecision acceptation: %v", err)
	}
	if rec.MotifRefus != "" {
		t.Errorf("motif résiduel après acceptation: %q", rec.MotifRefus)
	}

	var count int64
	db.Model(&models.CarcasseIntermediaire{}).
		Where("fiche_intermediaire_id = ? AND numero_bracelet = ?", fi.ID, "FG-L-001-B1").
		Count(&count)
	if count != 1 {
		t.Errorf("le remplacement a créé un doublon: %d dossiers", count)
	}

	// Le miroir de la carcasse suit le registre
	var carc models.Carcasse
	if err := db.First(&carc, "numero_bracelet = ?", "FG-L-001-B1").Error; err != nil {
		t.Fatal(err)
	}
	if !carc.IntermediairePriseEnCharge {
		t.Error("miroir prise en charge non posé")
	}
	if carc.IntermediaireRefusMotif != nil {
		t.Errorf("miroir de refus résiduel: %v", *carc.IntermediaireRefusMotif)
	}
}

func TestRecordDecisionMotifHorsCatalogue(t *testing.T) {
	db := testutil.SetupDB(t)
	fi := seedEpisode(t, db, "FG-L-002", 3, uintPtr(10), models.RoleETG, "FG-L-002-B1")

	_, err := RecordDecision(db, 3, fi.ID, "FG-L-002-B1",
		models.DecisionRefusee, "motif inventé", "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("attendu erreur de validation, obtenu %v", err)
	}

	_, err = RecordDecision(db, 3, fi.ID, "FG-L-002-B1", models.DecisionRefusee, "", "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("refus sans motif devrait être rejeté, obtenu %v", err)
	}
}

func TestRecordDecisionAutreIntermediaire(t *testing.T) {
	db := testutil.SetupDB(t)
	fi := seedEpisode(t, db, "FG-L-003", 3, uintPtr(10), models.RoleETG, "FG-L-003-B1")

	_, err := RecordDecision(db, 99, fi.ID, "FG-L-003-B1", models.DecisionAcceptee, "", "")
	if !apperr.IsKind(err, apperr.KindPermission) {
		t.Fatalf("attendu refus de permission, obtenu %v", err)
	}
}

// Deux épisodes successifs sur la même carcasse: la décision du second
// n'écrase jamais la ligne du premier, et le résolveur voit les deux.
func TestDecisionsParEpisodeSansEcrasement(t *testing.T) {
	db := testutil.SetupDB(t)
	premier := seedEpisode(t, db, "FG-L-004", 3, uintPtr(10), models.RoleETG, "FG-L-004-B1")

	if _, err := RecordDecision(db, 3, premier.ID, "FG-L-004-B1",
		models.DecisionAcceptee, "", ""); err != nil {
		t.Fatalf("décision du premier épisode: %v", err)
	}

	// Second épisode: un autre utilisateur de la même entité, plus tard
	second := models.FicheIntermediaire{
		ID:            models.IntermediaireID(7, "FG-L-004", time.Now().Add(time.Hour)),
		FicheNumero:   "FG-L-004",
		Role:          models.RoleETG,
		UtilisateurID: 7,
		EntiteID:      uintPtr(10),
	}
	if err := db.Create(&second).Error; err != nil {
		t.Fatal(err)
	}
	if err := EnsureRecords(db, &second); err != nil {
		t.Fatalf("EnsureRecords second épisode: %v", err)
	}
	if _, err := RecordDecision(db, 7, second.ID, "FG-L-004-B1",
		models.DecisionManquante, "", ""); err != nil {
		t.Fatalf("décision du second épisode: %v", err)
	}

	recs, err := RecordsForCarcasse(db, "FG-L-004", "FG-L-004-B1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("attendu 2 décisions au registre, obtenu %d", len(recs))
	}

	var carc models.Carcasse
	if err := db.First(&carc, "numero_bracelet = ?", "FG-L-004-B1").Error; err != nil {
		t.Fatal(err)
	}
	if got := status.Resolve(&carc, recs); got != status.StatutManquante {
		t.Errorf("statut résolu %s, attendu %s", got, status.StatutManquante)
	}
}

func TestCloseOutRefuseDossiersEnCours(t *testing.T) {
	db := testutil.SetupDB(t)
	fi := seedEpisode(t, db, "FG-L-005", 3, uintPtr(10), models.RoleETG,
		"FG-L-005-B1", "FG-L-005-B2")

	if _, err := RecordDecision(db, 3, fi.ID, "FG-L-005-B1",
		models.DecisionAcceptee, "", ""); err != nil {
		t.Fatal(err)
	}

	_, err := CloseOut(db, 3, fi.ID)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("attendu erreur de validation, obtenu %v", err)
	}
	if !strings.Contains(err.Error(), "FG-L-005-B2") {
		t.Errorf("le rejet devrait nommer le bracelet indécis: %q", err.Error())
	}

	if _, err := RecordDecision(db, 3, fi.ID, "FG-L-005-B2",
		models.DecisionManquante, "", ""); err != nil {
		t.Fatal(err)
	}

	clos, err := CloseOut(db, 3, fi.ID)
	if err != nil {
		t.Fatalf("CloseOut: %v", err)
	}
	if clos.CheckFinishedAt == nil {
		t.Fatal("check_finished_at non posé")
	}

	// Rejeu hors-ligne: clôturer un épisode clos est un succès silencieux
	if _, err := CloseOut(db, 3, fi.ID); err != nil {
		t.Errorf("rejeu de CloseOut: %v", err)
	}

	// Décisions figées après clôture
	_, err = RecordDecision(db, 3, fi.ID, "FG-L-005-B1", models.DecisionRefusee, "Odeur anormale", "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("décision acceptée après clôture: %v", err)
	}
}

// Un intermédiaire ne voit et n'instruit que les carcasses routées vers son
// entité par la répartition.
func TestVisibiliteLimiteeAuPerimetre(t *testing.T) {
	db := testutil.SetupDB(t)
	fi := seedEpisode(t, db, "FG-L-006", 3, uintPtr(10), models.RoleETG, "FG-L-006-B1")

	// Une carcasse routée vers une autre entité
	autreRole := models.RoleCCG
	carc := models.Carcasse{
		FicheNumero:               "FG-L-006",
		NumeroBracelet:            "FG-L-006-B2",
		Categorie:                 models.CategorieGrandGibier,
		ProchainDetenteurRole:     &autreRole,
		ProchainDetenteurEntiteID: uintPtr(11),
	}
	if err := db.Create(&carc).Error; err != nil {
		t.Fatal(err)
	}

	visibles, err := VisibleCarcasses(db, fi)
	if err != nil {
		t.Fatal(err)
	}
	if len(visibles) != 1 || visibles[0].NumeroBracelet != "FG-L-006-B1" {
		t.Fatalf("périmètre incorrect: %+v", visibles)
	}

	_, err = RecordDecision(db, 3, fi.ID, "FG-L-006-B2", models.DecisionAcceptee, "", "")
	if !apperr.IsKind(err, apperr.KindPermission) {
		t.Fatalf("décision hors périmètre acceptée: %v", err)
	}

	// La clôture de l'épisode ignore les carcasses hors périmètre
	if _, err := RecordDecision(db, 3, fi.ID, "FG-L-006-B1",
		models.DecisionAcceptee, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := CloseOut(db, 3, fi.ID); err != nil {
		t.Errorf("CloseOut: %v", err)
	}
}

func TestSviVoitTouteLaFiche(t *testing.T) {
	db := testutil.SetupDB(t)
	fi := seedEpisode(t, db, "FG-L-007", 4, uintPtr(20), models.RoleSVI,
		"FG-L-007-B1", "FG-L-007-B2")

	visibles, err := VisibleCarcasses(db, fi)
	if err != nil {
		t.Fatal(err)
	}
	if len(visibles) != 2 {
		t.Fatalf("le SVI devrait voir les 2 carcasses, en voit %d", len(visibles))
	}
}
