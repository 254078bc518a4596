package handler

import (
	"net/http"
	"testing"

	"github.com/habitstack/internal/db"
)

func createHabitViaAPI(t *testing.T, api *API, payload map[string]any) db.Habit {
	t.Helper()
	w := callHandler(t, api.CreateHabit, http.MethodPost, "/api/habits", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	return decodeBody[db.Habit](t, w)
}

func TestCreateHabitValidation(t *testing.T) {
	api, _ := setupTestAPI(t)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{name: "missing time", body: map[string]any{"name": "Run", "category": "c1"}, message: "time is required"},
		{name: "negative time", body: map[string]any{"name": "Run", "category": "c1", "time": -5}, message: "time must be at least 0"},
		{name: "missing name", body: map[string]any{"category": "c1", "time": 5}, message: "name is required"},
		{name: "empty body", body: nil, message: "request body is required"},
		{name: "malformed", body: "{", message: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := callHandler(t, api.CreateHabit, http.MethodPost, "/api/habits", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
			if body := decodeBody[errorBody](t, w); body.Error != tt.message {
				t.Fatalf("expected %q, got %q", tt.message, body.Error)
			}
		})
	}
}

func TestCreateHabitAcceptsZeroTime(t *testing.T) {
	api, _ := setupTestAPI(t)

	habit := createHabitViaAPI(t, api, map[string]any{"name": "Breathe", "category": "c1", "time": 0})
	if habit.Time != 0 || habit.ID == "" {
		t.Fatalf("unexpected habit: %+v", habit)
	}
}

func TestUpdateHabitEmptyPayload(t *testing.T) {
	api, _ := setupTestAPI(t)
	habit := createHabitViaAPI(t, api, map[string]any{"name": "Read", "category": "c1", "time": 15, "description": "10 pages"})

	w := callHandler(t, api.UpdateHabit, http.MethodPut, "/api/habits/"+habit.ID, map[string]any{}, "id", habit.ID)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if body := decodeBody[errorBody](t, w); body.Error != "No data to update" {
		t.Fatalf("unexpected error: %+v", body)
	}

	w = callHandler(t, api.GetHabit, http.MethodGet, "/api/habits/"+habit.ID, nil, "id", habit.ID)
	reloaded := decodeBody[db.Habit](t, w)
	if reloaded.Name != "Read" || reloaded.Time != 15 || reloaded.Description != "10 pages" {
		t.Fatalf("expected habit unchanged, got %+v", reloaded)
	}
}

func TestUpdateHabitPartial(t *testing.T) {
	api, _ := setupTestAPI(t)
	habit := createHabitViaAPI(t, api, map[string]any{"name": "Read", "category": "c1", "time": 15})

	w := callHandler(t, api.UpdateHabit, http.MethodPut, "/api/habits/"+habit.ID, map[string]any{"name": "Read more"}, "id", habit.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := decodeBody[db.Habit](t, w)
	if updated.Name != "Read more" || updated.Time != 15 || updated.Category != "c1" {
		t.Fatalf("unexpected habit: %+v", updated)
	}
}

func TestHabitNotFound(t *testing.T) {
	api, _ := setupTestAPI(t)

	for _, tc := range []struct {
		name string
		call func() int
	}{
		{name: "get", call: func() int {
			return callHandler(t, api.GetHabit, http.MethodGet, "/api/habits/missing", nil, "id", "missing").Code
		}},
		{name: "update", call: func() int {
			return callHandler(t, api.UpdateHabit, http.MethodPut, "/api/habits/missing", map[string]any{"time": 3}, "id", "missing").Code
		}},
		{name: "delete", call: func() int {
			return callHandler(t, api.DeleteHabit, http.MethodDelete, "/api/habits/missing", nil, "id", "missing").Code
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if code := tc.call(); code != http.StatusNotFound {
				t.Fatalf("expected status 404, got %d", code)
			}
		})
	}
}

func TestListHabitsFilters(t *testing.T) {
	api, _ := setupTestAPI(t)
	createHabitViaAPI(t, api, map[string]any{"name": "Morning run", "category": "health", "time": 30})
	createHabitViaAPI(t, api, map[string]any{"name": "Journal", "category": "mind", "time": 10})

	w := callHandler(t, api.ListHabits, http.MethodGet, "/api/habits?category=health", nil)
	if list := decodeBody[[]db.Habit](t, w); len(list) != 1 || list[0].Name != "Morning run" {
		t.Fatalf("unexpected category filter result: %+v", list)
	}

	w = callHandler(t, api.ListHabits, http.MethodGet, "/api/habits?search=journ", nil)
	if list := decodeBody[[]db.Habit](t, w); len(list) != 1 || list[0].Name != "Journal" {
		t.Fatalf("unexpected search result: %+v", list)
	}

	w = callHandler(t, api.ListHabits, http.MethodGet, "/api/habits", nil)
	if list := decodeBody[[]db.Habit](t, w); len(list) != 2 {
		t.Fatalf("expected 2 habits, got %d", len(list))
	}
}

func TestDeleteHabit(t *testing.T) {
	api, _ := setupTestAPI(t)
	habit := createHabitViaAPI(t, api, map[string]any{"name": "Floss", "category": "health", "time": 2})

	w := callHandler(t, api.DeleteHabit, http.MethodDelete, "/api/habits/"+habit.ID, nil, "id", habit.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if body := decodeBody[map[string]string](t, w); body["message"] != "Habit deleted successfully" {
		t.Fatalf("unexpected body: %v", body)
	}
}
