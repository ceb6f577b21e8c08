package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/roomsync-dev/roomsync/internal/database"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return New(db, "test-secret", slog.New(slog.DiscardHandler)).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

type userResp struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	HouseholdID *int64 `json:"householdId"`
}

type authResp struct {
	Token string   `json:"token"`
	User  userResp `json:"user"`
}

type householdResp struct {
	Household struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		RoomCode string `json:"roomCode"`
	} `json:"household"`
}

func register(t *testing.T, h http.Handler, name, email string) authResp {
	t.Helper()
	rec := doJSON(t, h, "POST", "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body %s", email, rec.Code, rec.Body.String())
	}
	var resp authResp
	decode(t, rec, &resp)
	return resp
}

func TestRegister(t *testing.T) {
	h := setupServer(t)

	resp := register(t, h, "Alice", "alice@example.com")
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if resp.User.Name != "Alice" || resp.User.Email != "alice@example.com" {
		t.Errorf("user = %+v", resp.User)
	}
	if resp.User.HouseholdID != nil {
		t.Error("new user should have null householdId")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := setupServer(t)

	register(t, h, "Alice", "alice@example.com")
	rec := doJSON(t, h, "POST", "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "alice@example.com", "password": "pw123456",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	h := setupServer(t)

	rec := doJSON(t, h, "POST", "/api/auth/register", "", map[string]string{"email": "x@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLogin(t *testing.T) {
	h := setupServer(t)

	register(t, h, "Alice", "alice@example.com")

	rec := doJSON(t, h, "POST", "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp authResp
	decode(t, rec, &resp)
	if resp.Token == "" {
		t.Error("expected a token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := setupServer(t)

	register(t, h, "Alice", "alice@example.com")

	rec := doJSON(t, h, "POST", "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	h := setupServer(t)

	rec := doJSON(t, h, "POST", "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMe(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")

	rec := doJSON(t, h, "GET", "/api/auth/me", alice.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		User userResp `json:"user"`
	}
	decode(t, rec, &resp)
	if resp.User.ID != alice.User.ID {
		t.Errorf("user id = %d, want %d", resp.User.ID, alice.User.ID)
	}
}

func TestMeNoToken(t *testing.T) {
	h := setupServer(t)

	rec := doJSON(t, h, "GET", "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// Mirrors the full onboarding flow: Alice creates "Apt 4B", Bob joins with
// the lowercased code, and Alice's second create is rejected.
func TestHouseholdCreateAndJoinFlow(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	bob := register(t, h, "Bob", "bob@example.com")

	rec := doJSON(t, h, "POST", "/api/auth/create-household", "", map[string]any{
		"name": "Apt 4B", "userId": alice.User.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create-household: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created householdResp
	decode(t, rec, &created)
	if created.Household.Name != "Apt 4B" {
		t.Errorf("name = %q", created.Household.Name)
	}
	if !codePattern.MatchString(created.Household.RoomCode) {
		t.Errorf("room code %q does not match ^[A-Z0-9]{6}$", created.Household.RoomCode)
	}

	rec = doJSON(t, h, "POST", "/api/auth/join-household", "", map[string]any{
		"roomCode": lower(created.Household.RoomCode), "userId": bob.User.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("join-household: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var joined householdResp
	decode(t, rec, &joined)
	if joined.Household.ID != created.Household.ID {
		t.Errorf("joined household %d, want %d", joined.Household.ID, created.Household.ID)
	}

	rec = doJSON(t, h, "POST", "/api/auth/create-household", "", map[string]any{
		"name": "Second Place", "userId": alice.User.ID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("second create: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateHouseholdUnknownUser(t *testing.T) {
	h := setupServer(t)

	rec := doJSON(t, h, "POST", "/api/auth/create-household", "", map[string]any{
		"name": "Apt 4B", "userId": 999,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestJoinHouseholdUnknownCode(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	rec := doJSON(t, h, "POST", "/api/auth/join-household", "", map[string]any{
		"roomCode": "ZZZZZZ", "userId": alice.User.ID,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func createHousehold(t *testing.T, h http.Handler, userID int64, name string) householdResp {
	t.Helper()
	rec := doJSON(t, h, "POST", "/api/auth/create-household", "", map[string]any{
		"name": name, "userId": userID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create-household: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp householdResp
	decode(t, rec, &resp)
	return resp
}

func TestTaskLifecycle(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	createHousehold(t, h, alice.User.ID, "Apt 4B")

	rec := doJSON(t, h, "POST", "/api/tasks", alice.Token, map[string]any{
		"description": "Clean the kitchen counter",
		"assignedTo":  "Alice",
		"frequency":   "weekly",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var task struct {
		ID          int64   `json:"id"`
		IsCompleted bool    `json:"isCompleted"`
		CompletedAt *string `json:"completedAt"`
	}
	decode(t, rec, &task)
	if task.IsCompleted {
		t.Error("new task should be incomplete")
	}

	rec = doJSON(t, h, "PUT", fmt.Sprintf("/api/tasks/%d", task.ID), alice.Token, map[string]any{
		"isCompleted": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update task: status = %d, body %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &task)
	if !task.IsCompleted {
		t.Error("task should be completed")
	}
	if task.CompletedAt == nil {
		t.Error("completing a task should stamp completedAt")
	}

	rec = doJSON(t, h, "GET", "/api/tasks", alice.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list tasks: status = %d", rec.Code)
	}
	var tasks []json.RawMessage
	decode(t, rec, &tasks)
	if len(tasks) != 1 {
		t.Errorf("expected 1 task, got %d", len(tasks))
	}

	rec = doJSON(t, h, "DELETE", fmt.Sprintf("/api/tasks/%d", task.ID), alice.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete task: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var deleted struct {
		Message     string          `json:"message"`
		DeletedTask json.RawMessage `json:"deletedTask"`
	}
	decode(t, rec, &deleted)
	if deleted.Message == "" || deleted.DeletedTask == nil {
		t.Errorf("delete response = %s", rec.Body.String())
	}
}

func TestTaskClearDueDate(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	createHousehold(t, h, alice.User.ID, "Apt 4B")

	rec := doJSON(t, h, "POST", "/api/tasks", alice.Token, map[string]any{
		"description": "Take out recycling",
		"assignedTo":  "Alice",
		"dueDate":     "2026-09-05T12:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var task struct {
		ID      int64   `json:"id"`
		DueDate *string `json:"dueDate"`
	}
	decode(t, rec, &task)
	if task.DueDate == nil {
		t.Fatal("expected task to have a due date")
	}

	// A partial update that omits dueDate keeps the stored value.
	rec = doJSON(t, h, "PUT", fmt.Sprintf("/api/tasks/%d", task.ID), alice.Token, map[string]any{
		"description": "Take out recycling and trash",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update task: status = %d, body %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &task)
	if task.DueDate == nil {
		t.Error("omitting dueDate should keep the stored value")
	}

	// An explicit null clears it.
	rec = doJSON(t, h, "PUT", fmt.Sprintf("/api/tasks/%d", task.ID), alice.Token, map[string]any{
		"dueDate": nil,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear due date: status = %d, body %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &task)
	if task.DueDate != nil {
		t.Errorf("dueDate = %v, want null", *task.DueDate)
	}
}

func TestTasksRequireAuth(t *testing.T) {
	h := setupServer(t)

	rec := doJSON(t, h, "GET", "/api/tasks", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestTasksRequireHousehold(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	rec := doJSON(t, h, "GET", "/api/tasks", alice.Token, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestTasksScopedToHousehold(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	carol := register(t, h, "Carol", "carol@example.com")
	createHousehold(t, h, alice.User.ID, "Apt 4B")
	createHousehold(t, h, carol.User.ID, "Apt 9Z")

	rec := doJSON(t, h, "POST", "/api/tasks", alice.Token, map[string]any{
		"description": "Water plants", "assignedTo": "Alice",
	})
	var task struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &task)

	// Carol cannot see or touch Alice's task.
	rec = doJSON(t, h, "GET", "/api/tasks", carol.Token, nil)
	var tasks []json.RawMessage
	decode(t, rec, &tasks)
	if len(tasks) != 0 {
		t.Errorf("expected 0 tasks for other household, got %d", len(tasks))
	}

	rec = doJSON(t, h, "DELETE", fmt.Sprintf("/api/tasks/%d", task.ID), carol.Token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-household delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestBillSplit(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	bob := register(t, h, "Bob", "bob@example.com")
	carol := register(t, h, "Carol", "carol@example.com")
	created := createHousehold(t, h, alice.User.ID, "Apt 4B")
	for _, u := range []authResp{bob, carol} {
		rec := doJSON(t, h, "POST", "/api/auth/join-household", "", map[string]any{
			"roomCode": created.Household.RoomCode, "userId": u.User.ID,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("join: status = %d", rec.Code)
		}
	}

	rec := doJSON(t, h, "POST", "/api/bills", alice.Token, map[string]any{
		"description": "Internet", "amountCents": 10000, "paidBy": alice.User.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create bill: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var bill struct {
		AmountCents int64 `json:"amountCents"`
		Split       []struct {
			UserID      int64 `json:"userId"`
			AmountCents int64 `json:"amountCents"`
		} `json:"split"`
	}
	decode(t, rec, &bill)
	if len(bill.Split) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(bill.Split))
	}
	var sum int64
	for _, s := range bill.Split {
		sum += s.AmountCents
	}
	if sum != bill.AmountCents {
		t.Errorf("shares sum to %d, want %d", sum, bill.AmountCents)
	}
	// 10000 over 3: first member covers the extra cent.
	if bill.Split[0].AmountCents != 3334 {
		t.Errorf("first share = %d, want 3334", bill.Split[0].AmountCents)
	}
}

func TestBillPayerMustBeMember(t *testing.T) {
	h := setupServer(t)

	alice := register(t, h, "Alice", "alice@example.com")
	outsider := register(t, h, "Eve", "eve@example.com")
	createHousehold(t, h, alice.User.ID, "Apt 4B")

	rec := doJSON(t, h, "POST", "/api/bills", alice.Token, map[string]any{
		"description": "Rent", "amountCents": 180000, "paidBy": outsider.User.ID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHealth(t *testing.T) {
	h := setupServer(t)

	rec := doJSON(t, h, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func lower(s string) string {
	buf := []byte(s)
	for i, c := range buf {
		if c >= 'A' && c <= 'Z' {
			buf[i] = c + 'a' - 'A'
		}
	}
	return string(buf)
}
