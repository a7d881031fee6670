package scheduling

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// PractitionerSelector resolves which practitioner fulfills a request. An
// explicit practitioner id is simply resolved; otherwise one candidate is
// picked uniformly at random among active practitioners of the requested
// specialty who are free at the requested time.
type PractitionerSelector struct {
	practitioners PractitionerRepository

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPractitionerSelector builds a selector. A nil rng gets a time-seeded
// source; tests pass a fixed seed for deterministic picks.
func NewPractitionerSelector(practitioners PractitionerRepository, rng *rand.Rand) *PractitionerSelector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &PractitionerSelector{practitioners: practitioners, rng: rng}
}

func (s *PractitionerSelector) Select(ctx context.Context, req SchedulingRequest) (*Practitioner, error) {
	if req.PractitionerID != nil {
		// The active-practitioner rule has already run; a miss here means a
		// broken invariant, surfaced as ErrPractitionerNotFound.
		p, err := s.practitioners.GetPractitionerByID(ctx, *req.PractitionerID)
		if err != nil {
			return nil, fmt.Errorf("resolve practitioner %s: %w", req.PractitionerID, err)
		}
		return p, nil
	}

	if req.Specialty == "" {
		return nil, &InvalidRequestError{Reason: "specialty is required when no practitioner is chosen"}
	}

	candidates, err := s.practitioners.ListAvailableBySpecialty(ctx, req.Specialty, req.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("list available practitioners: %w", err)
	}
	if len(candidates) == 0 {
		return nil, &ValidationError{Reason: "no practitioner is available at the requested time"}
	}

	pick := candidates[s.intn(len(candidates))]
	return &pick, nil
}

func (s *PractitionerSelector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
