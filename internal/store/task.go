package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roomsync-dev/roomsync/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var dueDate, completedAt sql.NullTime
	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &t.Description, &t.AssignedTo,
		&dueDate, &t.IsCompleted, &t.Frequency, &completedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

const taskCols = `id, household_id, description, assigned_to, due_date, is_completed, frequency, completed_at, created_at, updated_at`

func (s *TaskStore) Create(householdID int64, description, assignedTo string, dueDate *time.Time, frequency string) (*model.Task, error) {
	result, err := s.db.Exec(
		`INSERT INTO tasks (household_id, description, assigned_to, due_date, frequency) VALUES (?, ?, ?, ?, ?)`,
		householdID, description, assignedTo, nullTime(dueDate), frequency,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByHousehold returns a household's tasks with incomplete tasks first,
// then by due date (tasks without one last), newest created first as the
// final tiebreak.
func (s *TaskStore) ListByHousehold(householdID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE household_id = ?
		 ORDER BY is_completed ASC,
		          due_date IS NULL ASC,
		          due_date ASC,
		          created_at DESC,
		          id DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(id int64, description, assignedTo string, dueDate *time.Time, isCompleted bool, frequency string, completedAt *time.Time) (*model.Task, error) {
	_, err := s.db.Exec(
		`UPDATE tasks
		 SET description = ?, assigned_to = ?, due_date = ?, is_completed = ?, frequency = ?, completed_at = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		description, assignedTo, nullTime(dueDate), isCompleted, frequency, nullTime(completedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
