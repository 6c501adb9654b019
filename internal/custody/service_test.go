package custody

import (
	"strings"
	"testing"
	"time"

	"gibier-backend/internal/apperr"
	"gibier-backend/internal/dispatch"
	"gibier-backend/internal/ledger"
	"gibier-backend/internal/models"
	"gibier-backend/internal/testutil"

	"gorm.io/gorm"
)

const (
	examinateurID uint = 1
	detenteurID   uint = 2
	etgUserID     uint = 3
	sviUserID     uint = 4
	etgEntiteID   uint = 10
	sviEntiteID   uint = 20
)

func uintPtr(v uint) *uint { return &v }

// seedFiche: fiche signée par l'examinateur avec deux carcasses examinées,
// prête à être transférée.
func seedFiche(t *testing.T, db *gorm.DB, numero string) *models.Fiche {
	t.Helper()
	now := time.Now()
	uid := examinateurID
	fiche := models.Fiche{
		Numero:                         numero,
		DateMiseAMort:                  now,
		CommuneMiseAMort:               "Aubure",
		HeureMiseAMortPremiereCarcasse: "08:30",
		ExaminateurInitialUserID:       examinateurID,
		ExaminateurInitialApprobation:  true,
		CurrentOwnerRole:               models.RoleExaminateurInitial,
		CurrentOwnerUserID:             &uid,
	}
	if err := db.Create(&fiche).Error; err != nil {
		t.Fatalf("création fiche: %v", err)
	}
	for _, bracelet := range []string{numero + "-B1", numero + "-B2"} {
		signed := now
		carc := models.Carcasse{
			FicheNumero:         numero,
			NumeroBracelet:      bracelet,
			Espece:              "Chevreuil",
			Categorie:           models.CategorieGrandGibier,
			ExaminateurSignedAt: &signed,
		}
		if err := db.Create(&carc).Error; err != nil {
			t.Fatalf("création carcasse %s: %v", bracelet, err)
		}
	}
	return &fiche
}

func currentOwnerRef(fiche *models.Fiche) OwnerRef {
	return OwnerRef{
		Role:     fiche.CurrentOwnerRole,
		UserID:   fiche.CurrentOwnerUserID,
		EntiteID: fiche.CurrentOwnerEntiteID,
	}
}

func TestProposeRefuseExamenIncomplet(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-001")

	// Une carcasse non signée bloque la porte de l'examinateur
	if err := db.Model(&models.Carcasse{}).
		Where("numero_bracelet = ?", "FG-T-001-B2").
		Update("examinateur_signed_at", nil).Error; err != nil {
		t.Fatal(err)
	}

	next := OwnerRef{Role: models.RolePremierDetenteur, UserID: uintPtr(detenteurID)}
	_, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("attendu erreur de validation, obtenu %v", err)
	}
	if !strings.Contains(err.Error(), "FG-T-001-B2") {
		t.Errorf("l'erreur devrait nommer le bracelet non signé: %q", err.Error())
	}
}

func TestProposeConfirmTransfereLaGarde(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-002")

	next := OwnerRef{Role: models.RolePremierDetenteur, UserID: uintPtr(detenteurID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if fiche.NextOwnerRole == nil || *fiche.NextOwnerRole != models.RolePremierDetenteur {
		t.Fatalf("next_owner non posé: %+v", fiche)
	}
	// La garde ne bouge pas tant que le destinataire n'a pas confirmé
	if fiche.CurrentOwnerRole != models.RoleExaminateurInitial {
		t.Fatalf("la garde a bougé sans confirmation: %s", fiche.CurrentOwnerRole)
	}

	fiche, err = Confirm(db, detenteurID, nil, fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if fiche.CurrentOwnerRole != models.RolePremierDetenteur ||
		fiche.CurrentOwnerUserID == nil || *fiche.CurrentOwnerUserID != detenteurID {
		t.Errorf("garde non transférée: %+v", fiche)
	}
	if fiche.NextOwnerRole != nil {
		t.Error("proposition non effacée après confirmation")
	}
	if fiche.PrevOwnerRole == nil || *fiche.PrevOwnerRole != models.RoleExaminateurInitial {
		t.Errorf("ancien gardien non mémorisé: %+v", fiche.PrevOwnerRole)
	}
}

func TestConfirmConflitGardeObsolete(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-003")

	next := OwnerRef{Role: models.RolePremierDetenteur, UserID: uintPtr(detenteurID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Le client a lu un gardien qui n'est plus le bon
	autre := uint(99)
	perime := OwnerRef{Role: models.RoleExaminateurInitial, UserID: &autre}
	_, err = Confirm(db, detenteurID, nil, fiche.Numero, perime)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("attendu conflit, obtenu %v", err)
	}

	// La garde n'a pas bougé
	var relu models.Fiche
	if err := db.First(&relu, "numero = ?", fiche.Numero).Error; err != nil {
		t.Fatal(err)
	}
	if relu.CurrentOwnerRole != models.RoleExaminateurInitial {
		t.Errorf("la garde a bougé malgré le conflit: %s", relu.CurrentOwnerRole)
	}
	if relu.NextOwnerRole == nil {
		t.Error("la proposition devrait survivre au conflit")
	}
}

func TestConfirmMauvaisDestinataire(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-004")

	next := OwnerRef{Role: models.RolePremierDetenteur, UserID: uintPtr(detenteurID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	_, err = Confirm(db, etgUserID, uintPtr(etgEntiteID), fiche.Numero, currentOwnerRef(fiche))
	if !apperr.IsKind(err, apperr.KindPermission) {
		t.Fatalf("attendu refus de permission, obtenu %v", err)
	}
}

func TestConfirmIntermediaireCreeEpisodeEtDossiers(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-005")

	next := OwnerRef{Role: models.RoleETG, EntiteID: uintPtr(etgEntiteID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	fiche, err = Confirm(db, etgUserID, uintPtr(etgEntiteID), fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if fiche.CurrentOwnerRole != models.RoleETG {
		t.Fatalf("garde non transférée à l'ETG: %s", fiche.CurrentOwnerRole)
	}

	var fi models.FicheIntermediaire
	if err := db.First(&fi, "fiche_numero = ? AND utilisateur_id = ?", fiche.Numero, etgUserID).Error; err != nil {
		t.Fatalf("épisode non créé: %v", err)
	}
	if !strings.HasPrefix(fi.ID, "3_FG-T-005_") {
		t.Errorf("identifiant d'épisode inattendu: %s", fi.ID)
	}

	// Un dossier en cours de traitement par carcasse visible, créé avec la
	// prise en charge, pas à l'affichage
	var recs []models.CarcasseIntermediaire
	if err := db.Where("fiche_intermediaire_id = ?", fi.ID).Find(&recs).Error; err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("attendu 2 dossiers, obtenu %d", len(recs))
	}
	for _, r := range recs {
		if r.Decision != models.DecisionEnCours {
			t.Errorf("dossier %s: décision initiale %s", r.NumeroBracelet, r.Decision)
		}
	}

	// Rejouer la confirmation ne duplique pas l'épisode
	db.Model(&models.Fiche{}).Where("numero = ?", fiche.Numero).Updates(map[string]any{
		"next_owner_role":      models.RoleETG,
		"next_owner_entite_id": etgEntiteID,
	})
	if _, err := Confirm(db, etgUserID, uintPtr(etgEntiteID), fiche.Numero, currentOwnerRef(fiche)); err != nil {
		t.Fatalf("rejeu Confirm: %v", err)
	}
	var count int64
	db.Model(&models.FicheIntermediaire{}).
		Where("fiche_numero = ? AND utilisateur_id = ?", fiche.Numero, etgUserID).Count(&count)
	if count != 1 {
		t.Errorf("épisode dupliqué au rejeu: %d", count)
	}
}

func TestRejectEffaceLaPropositionSansBougerLaGarde(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-006")

	next := OwnerRef{Role: models.RolePremierDetenteur, UserID: uintPtr(detenteurID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	fiche, err = Reject(db, detenteurID, nil, fiche.Numero)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if fiche.NextOwnerRole != nil {
		t.Error("proposition non effacée")
	}
	if fiche.CurrentOwnerRole != models.RoleExaminateurInitial {
		t.Errorf("la garde a bougé sur un refus: %s", fiche.CurrentOwnerRole)
	}
}

// Transfert jusqu'au SVI puis clôture: refusée tant qu'une carcasse n'a pas
// de statut terminal, acceptée une fois le registre instruit, et la fiche
// devient entièrement immuable.
func TestCloseExigeStatutsTerminaux(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-007")

	next := OwnerRef{Role: models.RoleSVI, EntiteID: uintPtr(sviEntiteID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	fiche, err = Confirm(db, sviUserID, uintPtr(sviEntiteID), fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	// Les dossiers SVI sont en cours de traitement: clôture refusée
	_, err = Close(db, sviUserID, uintPtr(sviEntiteID), models.RoleSVI, fiche.Numero)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("attendu erreur de validation, obtenu %v", err)
	}
	if !strings.Contains(err.Error(), "FG-T-007-B1") {
		t.Errorf("l'erreur devrait nommer les bracelets: %q", err.Error())
	}

	var fi models.FicheIntermediaire
	if err := db.First(&fi, "fiche_numero = ? AND utilisateur_id = ?", fiche.Numero, sviUserID).Error; err != nil {
		t.Fatal(err)
	}
	for _, bracelet := range []string{"FG-T-007-B1", "FG-T-007-B2"} {
		if _, err := ledger.RecordDecision(db, sviUserID, fi.ID, bracelet,
			models.DecisionAcceptee, "", ""); err != nil {
			t.Fatalf("RecordDecision %s: %v", bracelet, err)
		}
	}

	fiche, err = Close(db, sviUserID, uintPtr(sviEntiteID), models.RoleSVI, fiche.Numero)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fiche.SviSignedAt == nil {
		t.Fatal("svi_signed_at non posé")
	}

	// Plus aucune transition après clôture
	_, err = Propose(db, sviUserID, uintPtr(sviEntiteID), fiche.Numero,
		OwnerRef{Role: models.RoleETG, EntiteID: uintPtr(etgEntiteID)})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("transition autorisée après clôture: %v", err)
	}
}

func TestClosePermissionSVIUniquement(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-008")

	_, err := Close(db, examinateurID, nil, models.RoleExaminateurInitial, fiche.Numero)
	if !apperr.IsKind(err, apperr.KindPermission) {
		t.Fatalf("attendu refus de permission, obtenu %v", err)
	}
}

// Répartition vers deux ETG simultanés: chacun confirme sa prise en charge,
// instruit son sous-ensemble et clôt son contrôle. Les pointeurs de garde de
// la fiche ne suivent que le destinataire du premier groupe.
func TestRepartitionDeuxDestinatairesSimultanes(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-009")

	signed := time.Now()
	troisieme := models.Carcasse{
		FicheNumero:         fiche.Numero,
		NumeroBracelet:      "FG-T-009-B3",
		Espece:              "Chevreuil",
		Categorie:           models.CategorieGrandGibier,
		ExaminateurSignedAt: &signed,
	}
	if err := db.Create(&troisieme).Error; err != nil {
		t.Fatal(err)
	}

	next := OwnerRef{Role: models.RolePremierDetenteur, UserID: uintPtr(detenteurID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	fiche, err = Confirm(db, detenteurID, nil, fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm détenteur: %v", err)
	}

	autreEntiteID := uint(11)
	autreUserID := uint(7)
	g1, err := dispatch.CreateGroup(db, detenteurID, nil, fiche.Numero, dispatch.GroupParams{
		TypeDestinataire:     models.DestinataireETG,
		DestinataireEntiteID: uintPtr(etgEntiteID),
		TransportType:        "destinataire",
	})
	if err != nil {
		t.Fatalf("CreateGroup g1: %v", err)
	}
	g2, err := dispatch.CreateGroup(db, detenteurID, nil, fiche.Numero, dispatch.GroupParams{
		TypeDestinataire:     models.DestinataireETG,
		DestinataireEntiteID: &autreEntiteID,
		TransportType:        "destinataire",
	})
	if err != nil {
		t.Fatalf("CreateGroup g2: %v", err)
	}
	for bracelet, groupID := range map[string]uint{
		"FG-T-009-B1": g1.ID,
		"FG-T-009-B2": g1.ID,
		"FG-T-009-B3": g2.ID,
	} {
		gid := groupID
		if _, err := dispatch.Assign(db, detenteurID, nil, fiche.Numero, bracelet, &gid); err != nil {
			t.Fatalf("Assign %s: %v", bracelet, err)
		}
	}
	fiche, err = dispatch.Submit(db, detenteurID, nil, models.RolePremierDetenteur, fiche.Numero)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Le second destinataire confirme en premier: la garde ne bouge pas
	// mais son épisode couvre sa carcasse
	fiche, err = Confirm(db, autreUserID, &autreEntiteID, fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm second destinataire: %v", err)
	}
	if fiche.CurrentOwnerRole != models.RolePremierDetenteur {
		t.Fatalf("la garde a suivi un destinataire secondaire: %s", fiche.CurrentOwnerRole)
	}
	var fiSecond models.FicheIntermediaire
	if err := db.First(&fiSecond, "fiche_numero = ? AND utilisateur_id = ?",
		fiche.Numero, autreUserID).Error; err != nil {
		t.Fatalf("épisode du second destinataire non créé: %v", err)
	}
	var recsSecond []models.CarcasseIntermediaire
	if err := db.Where("fiche_intermediaire_id = ?", fiSecond.ID).Find(&recsSecond).Error; err != nil {
		t.Fatal(err)
	}
	if len(recsSecond) != 1 || recsSecond[0].NumeroBracelet != "FG-T-009-B3" {
		t.Fatalf("périmètre du second destinataire: %+v", recsSecond)
	}

	// Le destinataire du premier groupe prend la garde
	fiche, err = Confirm(db, etgUserID, uintPtr(etgEntiteID), fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm premier destinataire: %v", err)
	}
	if fiche.CurrentOwnerRole != models.RoleETG ||
		fiche.CurrentOwnerEntiteID == nil || *fiche.CurrentOwnerEntiteID != etgEntiteID {
		t.Fatalf("garde non transférée au premier groupe: %+v", fiche)
	}
	var fiPremier models.FicheIntermediaire
	if err := db.First(&fiPremier, "fiche_numero = ? AND utilisateur_id = ?",
		fiche.Numero, etgUserID).Error; err != nil {
		t.Fatalf("épisode du premier destinataire non créé: %v", err)
	}
	var recsPremier []models.CarcasseIntermediaire
	if err := db.Where("fiche_intermediaire_id = ?", fiPremier.ID).Find(&recsPremier).Error; err != nil {
		t.Fatal(err)
	}
	if len(recsPremier) != 2 {
		t.Fatalf("périmètre du premier destinataire: %d dossiers", len(recsPremier))
	}

	// Chacun instruit et clôt son propre sous-ensemble
	if _, err := ledger.RecordDecision(db, autreUserID, fiSecond.ID, "FG-T-009-B3",
		models.DecisionAcceptee, "", ""); err != nil {
		t.Fatalf("RecordDecision B3: %v", err)
	}
	if _, err := ledger.CloseOut(db, autreUserID, fiSecond.ID); err != nil {
		t.Fatalf("CloseOut second destinataire: %v", err)
	}
	for _, bracelet := range []string{"FG-T-009-B1", "FG-T-009-B2"} {
		if _, err := ledger.RecordDecision(db, etgUserID, fiPremier.ID, bracelet,
			models.DecisionAcceptee, "", ""); err != nil {
			t.Fatalf("RecordDecision %s: %v", bracelet, err)
		}
	}
	if _, err := ledger.CloseOut(db, etgUserID, fiPremier.ID); err != nil {
		t.Fatalf("CloseOut premier destinataire: %v", err)
	}
}

// Une acceptation en amont ne suffit pas au SVI: sa propre prise en charge
// rouvre la revue et la clôture attend ses décisions.
func TestCloseApresAcceptationAmontExigeRevueSVI(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-010")

	next := OwnerRef{Role: models.RoleETG, EntiteID: uintPtr(etgEntiteID)}
	fiche, err := Propose(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	fiche, err = Confirm(db, etgUserID, uintPtr(etgEntiteID), fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm ETG: %v", err)
	}

	var fiETG models.FicheIntermediaire
	if err := db.First(&fiETG, "fiche_numero = ? AND utilisateur_id = ?",
		fiche.Numero, etgUserID).Error; err != nil {
		t.Fatal(err)
	}
	for _, bracelet := range []string{"FG-T-010-B1", "FG-T-010-B2"} {
		if _, err := ledger.RecordDecision(db, etgUserID, fiETG.ID, bracelet,
			models.DecisionAcceptee, "", ""); err != nil {
			t.Fatalf("RecordDecision %s: %v", bracelet, err)
		}
	}
	if _, err := ledger.CloseOut(db, etgUserID, fiETG.ID); err != nil {
		t.Fatalf("CloseOut ETG: %v", err)
	}

	fiche, err = Propose(db, etgUserID, uintPtr(etgEntiteID), fiche.Numero,
		OwnerRef{Role: models.RoleSVI, EntiteID: uintPtr(sviEntiteID)})
	if err != nil {
		t.Fatalf("Propose SVI: %v", err)
	}
	fiche, err = Confirm(db, sviUserID, uintPtr(sviEntiteID), fiche.Numero, currentOwnerRef(fiche))
	if err != nil {
		t.Fatalf("Confirm SVI: %v", err)
	}

	// Les acceptations de l'ETG sont acquises mais les dossiers SVI sont
	// ouverts: pas de clôture sans sa propre revue
	_, err = Close(db, sviUserID, uintPtr(sviEntiteID), models.RoleSVI, fiche.Numero)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("clôture acceptée sur revue SVI en cours: %v", err)
	}
	if !strings.Contains(err.Error(), "FG-T-010-B1") {
		t.Errorf("l'erreur devrait nommer les bracelets en cours: %q", err.Error())
	}

	var fiSVI models.FicheIntermediaire
	if err := db.First(&fiSVI, "fiche_numero = ? AND utilisateur_id = ?",
		fiche.Numero, sviUserID).Error; err != nil {
		t.Fatal(err)
	}
	for _, bracelet := range []string{"FG-T-010-B1", "FG-T-010-B2"} {
		if _, err := ledger.RecordDecision(db, sviUserID, fiSVI.ID, bracelet,
			models.DecisionAcceptee, "", ""); err != nil {
			t.Fatalf("RecordDecision SVI %s: %v", bracelet, err)
		}
	}

	fiche, err = Close(db, sviUserID, uintPtr(sviEntiteID), models.RoleSVI, fiche.Numero)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if fiche.SviSignedAt == nil {
		t.Error("svi_signed_at non posé")
	}
}

// Le marqueur d'intention de transfert suit la proposition: rien n'est posé
// quand elle échoue, rien n'est écrit sur une fiche clôturée.
func TestRequestTransferSansEtatPartiel(t *testing.T) {
	db := testutil.SetupDB(t)
	fiche := seedFiche(t, db, "FG-T-011")

	// Porte de l'examinateur fermée: une carcasse non signée
	if err := db.Model(&models.Carcasse{}).
		Where("numero_bracelet = ?", "FG-T-011-B2").
		Update("examinateur_signed_at", nil).Error; err != nil {
		t.Fatal(err)
	}
	next := OwnerRef{Role: models.RolePremierDetenteur, UserID: uintPtr(detenteurID)}
	_, err := RequestTransfer(db, examinateurID, nil, fiche.Numero, next)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("attendu erreur de validation, obtenu %v", err)
	}
	var relu models.Fiche
	if err := db.First(&relu, "numero = ?", fiche.Numero).Error; err != nil {
		t.Fatal(err)
	}
	if relu.CurrentOwnerWantsToTransfer {
		t.Error("marqueur posé malgré l'échec de la proposition")
	}
	if relu.NextOwnerRole != nil {
		t.Error("proposition posée malgré la porte fermée")
	}

	// Proposition valable: le marqueur arrive avec elle
	signed := time.Now()
	if err := db.Model(&models.Carcasse{}).
		Where("numero_bracelet = ?", "FG-T-011-B2").
		Update("examinateur_signed_at", signed).Error; err != nil {
		t.Fatal(err)
	}
	relu2, err := RequestTransfer(db, examinateurID, nil, fiche.Numero, next)
	if err != nil {
		t.Fatalf("RequestTransfer: %v", err)
	}
	if !relu2.CurrentOwnerWantsToTransfer {
		t.Error("marqueur absent après une proposition réussie")
	}
	if relu2.NextOwnerRole == nil || *relu2.NextOwnerRole != models.RolePremierDetenteur {
		t.Errorf("proposition non posée: %+v", relu2.NextOwnerRole)
	}

	// Fiche clôturée: lecture seule, marqueur compris
	if err := db.Model(&models.Fiche{}).Where("numero = ?", fiche.Numero).Updates(map[string]any{
		"svi_signed_at":                   signed,
		"current_owner_wants_to_transfer": false,
	}).Error; err != nil {
		t.Fatal(err)
	}
	_, err = RequestTransfer(db, examinateurID, nil, fiche.Numero, next)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("attendu erreur de validation, obtenu %v", err)
	}
	if err := db.First(&relu, "numero = ?", fiche.Numero).Error; err != nil {
		t.Fatal(err)
	}
	if relu.CurrentOwnerWantsToTransfer {
		t.Error("marqueur écrit sur une fiche clôturée")
	}
}
