package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/room-booking/internal/application"
)

var testBase = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

type stubRoomService struct {
	createResult application.Room
	createErr    error
	updateResult application.Room
	updateErr    error
	deleteErr    error
	getResult    application.Room
	getErr       error
	listResult   []application.Room
	listErr      error

	lastUpdate application.UpdateRoomParams
}

func (s *stubRoomService) CreateRoom(_ context.Context, _ application.CreateRoomParams) (application.Room, error) {
	return s.createResult, s.createErr
}

func (s *stubRoomService) UpdateRoom(_ context.Context, params application.UpdateRoomParams) (application.Room, error) {
	s.lastUpdate = params
	return s.updateResult, s.updateErr
}

func (s *stubRoomService) DeleteRoom(context.Context, application.Principal, string) error {
	return s.deleteErr
}

func (s *stubRoomService) GetRoom(context.Context, string) (application.Room, error) {
	return s.getResult, s.getErr
}

func (s *stubRoomService) ListRooms(context.Context, application.Principal) ([]application.Room, error) {
	return s.listResult, s.listErr
}

type stubBookingService struct {
	recommendResult []application.Room
	recommendErr    error
	assignResult    application.Assignment
	assignErr       error
	bestResult      application.Assignment
	bestErr         error

	assignCalled bool
	bestCalled   bool
}

func (s *stubBookingService) Recommend(context.Context, application.RecommendParams) ([]application.Room, error) {
	return s.recommendResult, s.recommendErr
}

func (s *stubBookingService) Assign(context.Context, application.AssignParams) (application.Assignment, error) {
	s.assignCalled = true
	return s.assignResult, s.assignErr
}

func (s *stubBookingService) AssignBest(context.Context, application.AssignBestParams) (application.Assignment, error) {
	s.bestCalled = true
	return s.bestResult, s.bestErr
}

type stubVerifier struct {
	principal application.Principal
	err       error
}

func (s stubVerifier) VerifyAccessToken(context.Context, string) (application.Principal, error) {
	return s.principal, s.err
}

func testRoom(id string) application.Room {
	return application.Room{
		ID:             id,
		RoomNumber:     "101",
		Floor:          1,
		AvailableSeats: 8,
		CreatedAt:      testBase,
		UpdatedAt:      testBase,
	}
}

func jsonBody(t *testing.T, payload any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	return bytes.NewReader(data)
}

func withPrincipal(r *http.Request, principal application.Principal) *http.Request {
	return r.WithContext(ContextWithPrincipal(r.Context(), principal))
}

func TestRoomHandlerUpdate(t *testing.T) {
	t.Parallel()

	t.Run("passes the If-Match version to the service and sets an ETag", func(t *testing.T) {
		t.Parallel()

		updated := testRoom("room-1")
		updated.UpdatedAt = testBase.Add(time.Minute)
		service := &stubRoomService{updateResult: updated}
		handler := NewRoomHandler(service, nil)

		req := httptest.NewRequest(http.MethodPatch, "/rooms/room-1", jsonBody(t, map[string]any{"available_seats": 12}))
		req.Header.Set("If-Match", `"`+testRoom("room-1").Version()+`"`)
		req = req.WithContext(ContextWithRoomID(req.Context(), "room-1"))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Update(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.lastUpdate.ClientVersion != testRoom("room-1").Version() {
			t.Fatalf("expected client version %q, got %q", testRoom("room-1").Version(), service.lastUpdate.ClientVersion)
		}
		if got := recorder.Header().Get("ETag"); got != `"`+updated.Version()+`"` {
			t.Fatalf("unexpected ETag: %q", got)
		}
		if service.lastUpdate.Patch.AvailableSeats == nil || *service.lastUpdate.Patch.AvailableSeats != 12 {
			t.Fatalf("expected seats patch 12, got %+v", service.lastUpdate.Patch)
		}
	})

	t.Run("stale version yields 412 with current state and merge proposal", func(t *testing.T) {
		t.Parallel()

		current := testRoom("room-1")
		current.AvailableSeats = 10
		proposed := current
		proposed.AvailableSeats = 12
		service := &stubRoomService{updateErr: &application.VersionConflictError{
			Current:        current,
			CurrentVersion: current.Version(),
			Proposed:       proposed,
		}}
		handler := NewRoomHandler(service, nil)

		req := httptest.NewRequest(http.MethodPatch, "/rooms/room-1", jsonBody(t, map[string]any{"available_seats": 12}))
		req.Header.Set("If-Match", `"stale"`)
		req = req.WithContext(ContextWithRoomID(req.Context(), "room-1"))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Update(recorder, req)

		if recorder.Code != http.StatusPreconditionFailed {
			t.Fatalf("expected 412, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if got := recorder.Header().Get("ETag"); got != `"`+current.Version()+`"` {
			t.Fatalf("unexpected ETag: %q", got)
		}

		var resp versionConflictResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.ErrorCode != "VERSION_CONFLICT" {
			t.Fatalf("unexpected error code: %q", resp.ErrorCode)
		}
		if resp.Current.AvailableSeats != 10 {
			t.Fatalf("expected current seats 10, got %d", resp.Current.AvailableSeats)
		}
		if resp.Proposed.AvailableSeats != 12 {
			t.Fatalf("expected proposed seats 12, got %d", resp.Proposed.AvailableSeats)
		}
	})

	t.Run("missing room id yields 400", func(t *testing.T) {
		t.Parallel()

		handler := NewRoomHandler(&stubRoomService{}, nil)
		req := httptest.NewRequest(http.MethodPatch, "/rooms/", strings.NewReader("{}"))
		recorder := httptest.NewRecorder()

		handler.Update(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})
}

func TestRoomHandlerCreate(t *testing.T) {
	t.Parallel()

	t.Run("returns 201 with the created room", func(t *testing.T) {
		t.Parallel()

		service := &stubRoomService{createResult: testRoom("room-1")}
		handler := NewRoomHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms", jsonBody(t, map[string]any{
			"room_number":     "101",
			"floor":           1,
			"available_seats": 8,
		}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Create(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		var resp roomResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Room.ID != "room-1" || resp.Room.Version == "" {
			t.Fatalf("unexpected room payload: %+v", resp.Room)
		}
	})

	t.Run("duplicate room number yields 409 with error code", func(t *testing.T) {
		t.Parallel()

		service := &stubRoomService{createErr: application.ErrAlreadyExists}
		handler := NewRoomHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms", jsonBody(t, map[string]any{"room_number": "101"}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Create(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.ErrorCode != "ALREADY_EXISTS" {
			t.Fatalf("unexpected error code: %q", resp.ErrorCode)
		}
	})

	t.Run("service validation errors yield 422 with field details", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"available_seats": "must be at least 1"}}
		service := &stubRoomService{createErr: vErr}
		handler := NewRoomHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms", jsonBody(t, map[string]any{"room_number": "101"}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Create(recorder, req)

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Errors["available_seats"] == "" {
			t.Fatalf("expected field error for available_seats, got %+v", resp.Errors)
		}
	})
}

func TestBookingHandlerRecommend(t *testing.T) {
	t.Parallel()

	t.Run("returns ranked rooms best first", func(t *testing.T) {
		t.Parallel()

		service := &stubBookingService{recommendResult: []application.Room{testRoom("room-2"), testRoom("room-1")}}
		handler := NewBookingHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/recommend", jsonBody(t, map[string]any{"number_of_people": 6}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Recommend(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		var resp listRoomsResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Rooms) != 2 || resp.Rooms[0].ID != "room-2" {
			t.Fatalf("unexpected room order: %+v", resp.Rooms)
		}
	})

	t.Run("rejects a missing head count before reaching the service", func(t *testing.T) {
		t.Parallel()

		service := &stubBookingService{}
		handler := NewBookingHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/recommend", strings.NewReader(`{}`))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Recommend(recorder, req)

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
		}
		var resp errorResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Errors["number_of_people"] == "" {
			t.Fatalf("expected field error for number_of_people, got %+v", resp.Errors)
		}
	})

	t.Run("rejects malformed timestamps", func(t *testing.T) {
		t.Parallel()

		handler := NewBookingHandler(&stubBookingService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/recommend", jsonBody(t, map[string]any{
			"number_of_people": 4,
			"start":            "yesterday",
		}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Recommend(recorder, req)

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
	})
}

func TestBookingHandlerAssign(t *testing.T) {
	t.Parallel()

	assignment := application.Assignment{
		Room: testRoom("room-1"),
		Meeting: application.Meeting{
			ID:          "meeting-1",
			RoomID:      "room-1",
			OrganizerID: "user-1",
			Start:       testBase.Add(time.Hour),
			End:         testBase.Add(2 * time.Hour),
			CreatedAt:   testBase,
		},
	}

	t.Run("books the named room", func(t *testing.T) {
		t.Parallel()

		service := &stubBookingService{assignResult: assignment}
		handler := NewBookingHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/assign", jsonBody(t, map[string]any{
			"room_id": "room-1",
			"start":   testBase.Add(time.Hour).Format(time.RFC3339),
			"end":     testBase.Add(2 * time.Hour).Format(time.RFC3339),
		}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Assign(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if !service.assignCalled || service.bestCalled {
			t.Fatalf("expected direct assignment path, got assign=%t best=%t", service.assignCalled, service.bestCalled)
		}
		var resp assignmentResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Meeting.ID != "meeting-1" {
			t.Fatalf("unexpected meeting payload: %+v", resp.Meeting)
		}
	})

	t.Run("falls back to best match when no room is named", func(t *testing.T) {
		t.Parallel()

		service := &stubBookingService{bestResult: assignment}
		handler := NewBookingHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/assign", jsonBody(t, map[string]any{
			"number_of_people": 6,
			"start":            testBase.Add(time.Hour).Format(time.RFC3339),
			"end":              testBase.Add(2 * time.Hour).Format(time.RFC3339),
		}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Assign(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.assignCalled || !service.bestCalled {
			t.Fatalf("expected best match path, got assign=%t best=%t", service.assignCalled, service.bestCalled)
		}
	})

	t.Run("booking conflicts yield 409 with conflict details", func(t *testing.T) {
		t.Parallel()

		service := &stubBookingService{assignErr: &application.BookingConflictError{
			RoomID:    "room-1",
			MeetingID: "meeting-9",
			Start:     testBase.Add(time.Hour),
			End:       testBase.Add(2 * time.Hour),
		}}
		handler := NewBookingHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/assign", jsonBody(t, map[string]any{
			"room_id": "room-1",
			"start":   testBase.Add(time.Hour).Format(time.RFC3339),
			"end":     testBase.Add(2 * time.Hour).Format(time.RFC3339),
		}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Assign(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.ErrorCode != "BOOKING_CONFLICT" {
			t.Fatalf("unexpected error code: %q", resp.ErrorCode)
		}
		if resp.Conflict == nil || resp.Conflict.MeetingID != "meeting-9" {
			t.Fatalf("expected conflict details, got %+v", resp.Conflict)
		}
	})

	t.Run("an exhausted search yields 409 with EXHAUSTED", func(t *testing.T) {
		t.Parallel()

		service := &stubBookingService{bestErr: application.ErrExhausted}
		handler := NewBookingHandler(service, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/assign", jsonBody(t, map[string]any{
			"number_of_people": 6,
			"start":            testBase.Add(time.Hour).Format(time.RFC3339),
			"end":              testBase.Add(2 * time.Hour).Format(time.RFC3339),
		}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Assign(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.ErrorCode != "EXHAUSTED" {
			t.Fatalf("unexpected error code: %q", resp.ErrorCode)
		}
	})

	t.Run("requires a window", func(t *testing.T) {
		t.Parallel()

		handler := NewBookingHandler(&stubBookingService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/rooms/assign", jsonBody(t, map[string]any{"room_id": "room-1"}))
		req = withPrincipal(req, application.Principal{UserID: "user-1"})
		recorder := httptest.NewRecorder()

		handler.Assign(recorder, req)

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
		}
	})
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without a bearer token", func(t *testing.T) {
		t.Parallel()

		middleware := RequireSession(stubVerifier{}, nil)
		handler := middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("next handler should not run without credentials")
		}))

		req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})

	t.Run("expired tokens yield 401", func(t *testing.T) {
		t.Parallel()

		middleware := RequireSession(stubVerifier{err: application.ErrSessionExpired}, nil)
		handler := middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("next handler should not run with an expired token")
		}))

		req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
		req.Header.Set("Authorization", "Bearer expired")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
	})

	t.Run("attaches the principal for downstream handlers", func(t *testing.T) {
		t.Parallel()

		want := application.Principal{UserID: "user-1", Email: "organizer@example.com"}
		middleware := RequireSession(stubVerifier{principal: want}, nil)

		var got application.Principal
		handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
		req.Header.Set("Authorization", "Bearer valid")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if got != want {
			t.Fatalf("expected principal %+v, got %+v", want, got)
		}
	})
}

func TestRouterDispatch(t *testing.T) {
	t.Parallel()

	t.Run("nested room paths are not treated as identifiers", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Rooms: NewRoomHandler(&stubRoomService{}, nil)})

		req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/extra", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})

	t.Run("recommend route wins over the room id route", func(t *testing.T) {
		t.Parallel()

		service := &stubBookingService{recommendResult: nil}
		router := NewRouter(RouterConfig{
			Rooms:    NewRoomHandler(&stubRoomService{getErr: errors.New("should not be called")}, nil),
			Bookings: NewBookingHandler(service, nil),
		})

		req := httptest.NewRequest(http.MethodPost, "/rooms/recommend", jsonBody(t, map[string]any{"number_of_people": 4}))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
	})

	t.Run("unsupported methods yield 405 with an Allow header", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Rooms: NewRoomHandler(&stubRoomService{}, nil)})

		req := httptest.NewRequest(http.MethodPut, "/rooms", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", recorder.Code)
		}
		if allow := recorder.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
			t.Fatalf("expected Allow header to include POST, got %q", allow)
		}
	})
}
