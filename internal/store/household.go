package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/roomsync-dev/roomsync/internal/apperr"
	"github.com/roomsync-dev/roomsync/internal/model"
)

const maxHouseholdNameLen = 100

// ErrCodeTaken is returned by Create when the room code hit the unique index.
// The membership service retries allocation on it; it is never client-facing.
var ErrCodeTaken = apperr.New(apperr.Conflict, "room code already in use")

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	err := scanner.Scan(&h.ID, &h.Name, &h.RoomCode, &h.CreatedBy, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHouseholdMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const householdCols = `id, name, room_code, created_by, created_at, updated_at`
const householdMemberCols = `id, household_id, user_id, created_at`

// NormalizeCode uppercases and trims a room code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create persists a household with the creator as its sole initial member.
// The household row and the creator's membership row commit together.
func (s *HouseholdStore) Create(name string, creatorID int64, code string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.Validation, "Household name is required")
	}
	if len(name) > maxHouseholdNameLen {
		return nil, apperr.New(apperr.Validation, "Household name is too long")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO households (name, room_code, created_by) VALUES (?, ?, ?)`,
		name, NormalizeCode(code), creatorID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (household_id, user_id) VALUES (?, ?)`,
		id, creatorID,
	); err != nil {
		return nil, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// GetByCode looks up a household by room code. The lookup is case-insensitive:
// input is normalized to uppercase and codes are stored uppercase.
func (s *HouseholdStore) GetByCode(code string) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE room_code = ?`, NormalizeCode(code))
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by code: %w", err)
	}
	return h, nil
}

// Delete removes a household; membership rows cascade.
func (s *HouseholdStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM households WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return nil
}

// CodeExists reports whether any household currently holds the code. The
// allocator uses it as a pre-check; the unique index remains the source of
// truth under concurrent creation.
func (s *HouseholdStore) CodeExists(code string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM households WHERE room_code = ?`, NormalizeCode(code)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check room code: %w", err)
	}
	return n > 0, nil
}

// AddMember appends a user to the household's member set. Idempotent:
// re-adding an existing member is a no-op and returns the existing row.
func (s *HouseholdStore) AddMember(householdID, userID int64) (*model.HouseholdMember, error) {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO household_members (household_id, user_id) VALUES (?, ?)`,
		householdID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	m, err := s.GetMember(householdID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("add member: row missing after insert")
	}
	return m, nil
}

func (s *HouseholdStore) GetMember(householdID, userID int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	m, err := scanHouseholdMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) ListMembers(householdID int64) ([]model.HouseholdMember, error) {
	rows, err := s.db.Query(
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? ORDER BY created_at ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.HouseholdMember
	for rows.Next() {
		m, err := scanHouseholdMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListMemberUsers returns the user rows for a household's members, creator first.
func (s *HouseholdStore) ListMemberUsers(householdID int64) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.email, u.name, u.password_hash, u.household_id, u.created_at, u.updated_at
		 FROM users u
		 JOIN household_members hm ON u.id = hm.user_id
		 WHERE hm.household_id = ?
		 ORDER BY hm.created_at ASC, hm.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list member users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
