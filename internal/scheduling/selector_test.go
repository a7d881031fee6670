package scheduling

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
)

var selectorSlot = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func TestSelectorResolvesExplicitPractitioner(t *testing.T) {
	repo := newMemRepo()
	pracID := repo.addPractitioner("dr a", SpecialtyCardiology, true)

	sel := NewPractitionerSelector(repo, nil)
	p, err := sel.Select(context.Background(), SchedulingRequest{
		PractitionerID: &pracID,
		ScheduledAt:    selectorSlot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != pracID {
		t.Fatalf("selected practitioner = %s, want %s", p.ID, pracID)
	}
}

func TestSelectorExplicitPractitionerMissing(t *testing.T) {
	repo := newMemRepo()
	unknown := uuid.New()

	sel := NewPractitionerSelector(repo, nil)
	_, err := sel.Select(context.Background(), SchedulingRequest{
		PractitionerID: &unknown,
		ScheduledAt:    selectorSlot,
	})
	if !errors.Is(err, ErrPractitionerNotFound) {
		t.Fatalf("error = %v, want ErrPractitionerNotFound", err)
	}
}

func TestSelectorRequiresSpecialty(t *testing.T) {
	sel := NewPractitionerSelector(newMemRepo(), nil)
	_, err := sel.Select(context.Background(), SchedulingRequest{ScheduledAt: selectorSlot})

	var irErr *InvalidRequestError
	if !errors.As(err, &irErr) {
		t.Fatalf("error type = %T (%v), want *InvalidRequestError", err, err)
	}
}

func TestSelectorNoCandidates(t *testing.T) {
	repo := newMemRepo()
	// Wrong specialty, inactive, and busy practitioners are all ineligible.
	repo.addPractitioner("dr derm", SpecialtyDermatology, true)
	repo.addPractitioner("dr inactive", SpecialtyCardiology, false)
	busyID := repo.addPractitioner("dr busy", SpecialtyCardiology, true)
	patientID := repo.addPatient(true)
	repo.addAppointment(busyID, patientID, selectorSlot)

	sel := NewPractitionerSelector(repo, nil)
	_, err := sel.Select(context.Background(), SchedulingRequest{
		Specialty:   SpecialtyCardiology,
		ScheduledAt: selectorSlot,
	})
	requireValidationError(t, err, "no practitioner is available at the requested time")
}

func TestSelectorSingleCandidateIsChosen(t *testing.T) {
	repo := newMemRepo()
	pracID := repo.addPractitioner("dr only", SpecialtyCardiology, true)

	sel := NewPractitionerSelector(repo, nil)
	p, err := sel.Select(context.Background(), SchedulingRequest{
		Specialty:   SpecialtyCardiology,
		ScheduledAt: selectorSlot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != pracID {
		t.Fatalf("selected practitioner = %s, want %s", p.ID, pracID)
	}
}

func TestSelectorBusyCandidateExcluded(t *testing.T) {
	repo := newMemRepo()
	busyID := repo.addPractitioner("dr busy", SpecialtyCardiology, true)
	freeID := repo.addPractitioner("dr free", SpecialtyCardiology, true)
	patientID := repo.addPatient(true)
	repo.addAppointment(busyID, patientID, selectorSlot)

	sel := NewPractitionerSelector(repo, nil)
	p, err := sel.Select(context.Background(), SchedulingRequest{
		Specialty:   SpecialtyCardiology,
		ScheduledAt: selectorSlot,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != freeID {
		t.Fatalf("selected practitioner = %s, want the free one %s", p.ID, freeID)
	}
}

func TestSelectorRandomPickIsDeterministicWithSeed(t *testing.T) {
	repo := newMemRepo()
	ids := map[uuid.UUID]bool{
		repo.addPractitioner("dr a", SpecialtyCardiology, true): true,
		repo.addPractitioner("dr b", SpecialtyCardiology, true): true,
		repo.addPractitioner("dr c", SpecialtyCardiology, true): true,
	}

	req := SchedulingRequest{Specialty: SpecialtyCardiology, ScheduledAt: selectorSlot}

	pick := func(seed int64) uuid.UUID {
		sel := NewPractitionerSelector(repo, rand.New(rand.NewSource(seed)))
		p, err := sel.Select(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return p.ID
	}

	first := pick(42)
	if !ids[first] {
		t.Fatalf("selected practitioner %s is not a candidate", first)
	}
	if second := pick(42); second != first {
		t.Fatalf("same seed picked %s then %s", first, second)
	}
}
