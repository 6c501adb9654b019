package fiche

import (
	"testing"
	"time"

	"gibier-backend/internal/models"
	"gibier-backend/internal/testutil"
)

func TestGenereNumeroSequenceDuJour(t *testing.T) {
	db := testutil.SetupDB(t)
	d := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	numero, err := genereNumero(db, d, 0)
	if err != nil {
		t.Fatal(err)
	}
	if numero != "FG-20260829-001" {
		t.Errorf("premier numéro du jour: %q", numero)
	}

	fiche, err := createFiche(db, 1, d, CreateFicheRequest{CommuneMiseAMort: "Aubure"})
	if err != nil {
		t.Fatal(err)
	}
	if fiche.Numero != "FG-20260829-001" {
		t.Errorf("numéro attribué: %q", fiche.Numero)
	}

	numero, err = genereNumero(db, d, 0)
	if err != nil {
		t.Fatal(err)
	}
	if numero != "FG-20260829-002" {
		t.Errorf("numéro suivant: %q", numero)
	}
}

// Deux créations simultanées peuvent lire la même séquence; la collision de
// clé primaire est absorbée en réessayant au numéro suivant.
func TestCreateFicheCollisionDeNumero(t *testing.T) {
	db := testutil.SetupDB(t)
	d := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	if _, err := createFiche(db, 1, d, CreateFicheRequest{}); err != nil {
		t.Fatal(err)
	}

	// Un concurrent a sauté la séquence: deux fiches du jour, dont une
	// déjà sous le numéro 003 que la prochaine lecture va recalculer
	uid := uint(2)
	occupe := models.Fiche{
		Numero:                   "FG-20260829-003",
		DateMiseAMort:            d,
		ExaminateurInitialUserID: uid,
		CurrentOwnerRole:         models.RoleExaminateurInitial,
		CurrentOwnerUserID:       &uid,
	}
	if err := db.Create(&occupe).Error; err != nil {
		t.Fatal(err)
	}

	fiche, err := createFiche(db, 1, d, CreateFicheRequest{})
	if err != nil {
		t.Fatalf("création malgré collision: %v", err)
	}
	if fiche.Numero != "FG-20260829-004" {
		t.Errorf("numéro après collision: %q", fiche.Numero)
	}
}
