// Package membership orchestrates household creation and joining, and owns
// the affiliation invariant: a user belongs to at most one household, and the
// transition from unaffiliated to affiliated happens exactly once.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/roomsync-dev/roomsync/internal/apperr"
	"github.com/roomsync-dev/roomsync/internal/model"
	"github.com/roomsync-dev/roomsync/internal/roomcode"
	"github.com/roomsync-dev/roomsync/internal/store"
)

// Persist-time code collisions are retried transparently this many times
// before giving up. Each attempt uses a freshly generated code.
const maxCreateAttempts = 5

var (
	ErrUserNotFound      = apperr.New(apperr.NotFound, "User not found")
	ErrHouseholdNotFound = apperr.New(apperr.NotFound, "Invalid room code")
	ErrAlreadyAffiliated = apperr.New(apperr.Conflict, "User already belongs to a household")
	ErrCodeExhausted     = apperr.New(apperr.Unavailable, "Unable to allocate a room code, please try again")
)

type Service struct {
	users      *store.UserStore
	households *store.HouseholdStore
	allocator  *roomcode.Allocator
	logger     *slog.Logger
}

func NewService(users *store.UserStore, households *store.HouseholdStore, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		households: households,
		allocator:  roomcode.NewAllocator(households),
		logger:     logger,
	}
}

// CreateHousehold allocates a room code, persists the household with the user
// as creator and sole member, and links the user to it. The unique index on
// the code column is the collision arbiter: a persist-time violation gets a
// fresh code and another attempt, up to the cap.
func (s *Service) CreateHousehold(ctx context.Context, userID int64, name string) (*model.Household, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Affiliated() {
		return nil, ErrAlreadyAffiliated
	}

	var household *model.Household
	b := retry.WithMaxRetries(maxCreateAttempts, retry.NewConstant(time.Millisecond))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		code, err := s.allocator.Allocate(ctx)
		if err != nil {
			return err
		}
		h, err := s.households.Create(name, userID, code)
		if errors.Is(err, store.ErrCodeTaken) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		household = h
		return nil
	})
	if errors.Is(err, store.ErrCodeTaken) || errors.Is(err, roomcode.ErrSpaceExhausted) {
		return nil, ErrCodeExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("create household: %w", err)
	}

	linked, err := s.users.SetHousehold(userID, household.ID)
	if err != nil {
		s.logOrphan(household, userID, err)
		return nil, fmt.Errorf("link creator: %w", err)
	}
	if !linked {
		// A concurrent create or join for the same user won the conditional
		// write. Nothing references the household this request created, so
		// undo it; if the cleanup fails the row is orphaned and logged for
		// operator follow-up.
		if derr := s.households.Delete(household.ID); derr != nil {
			s.logOrphan(household, userID, derr)
		}
		return nil, ErrAlreadyAffiliated
	}

	return household, nil
}

// JoinHousehold links the user to the household matching the room code
// (case-insensitive) and appends them to its member set.
func (s *Service) JoinHousehold(ctx context.Context, userID int64, code string) (*model.Household, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Affiliated() {
		return nil, ErrAlreadyAffiliated
	}

	household, err := s.households.GetByCode(code)
	if err != nil {
		return nil, fmt.Errorf("lookup household: %w", err)
	}
	if household == nil {
		return nil, ErrHouseholdNotFound
	}

	// The conditional write is the gate: only one concurrent request can move
	// the user from unaffiliated to affiliated. No membership row is written
	// for the loser.
	linked, err := s.users.SetHousehold(userID, household.ID)
	if err != nil {
		return nil, fmt.Errorf("link member: %w", err)
	}
	if !linked {
		return nil, ErrAlreadyAffiliated
	}

	if _, err := s.households.AddMember(household.ID, userID); err != nil {
		s.logger.Error("user linked but member row missing",
			"household_id", household.ID,
			"room_code", household.RoomCode,
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("add member: %w", err)
	}

	return household, nil
}

func (s *Service) logOrphan(h *model.Household, userID int64, cause error) {
	s.logger.Error("orphaned household: created but creator not linked",
		"household_id", h.ID,
		"room_code", h.RoomCode,
		"creator_id", userID,
		"error", cause)
}
