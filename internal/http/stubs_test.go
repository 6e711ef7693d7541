package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/eventboard/internal/application"
	"github.com/example/eventboard/internal/testfixtures"
)

const (
	adminEmail  = "admin@example.com"
	memberEmail = "member@example.com"
	password    = "correct-horse"
)

var (
	adminPrincipal  = application.NewPrincipal(1, true)
	memberPrincipal = application.NewPrincipal(2, false)
)

// stubAuthenticator accepts the fixed password for a known email.
type stubAuthenticator struct {
	principals map[string]application.Principal
	err        error
}

func newStubAuthenticator() *stubAuthenticator {
	return &stubAuthenticator{principals: map[string]application.Principal{
		adminEmail:  adminPrincipal,
		memberEmail: memberPrincipal,
	}}
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, email, pw string) (application.Principal, error) {
	if s.err != nil {
		return application.Principal{}, s.err
	}
	principal, ok := s.principals[email]
	if !ok || pw != password {
		return application.Principal{}, application.ErrUnauthenticated
	}
	return principal, nil
}

type stubEventService struct {
	created    application.EventInput
	event      application.Event
	events     []application.Event
	lastWindow application.EventRange
	lastAfter  *time.Time
	err        error
}

func (s *stubEventService) CreateEvent(ctx context.Context, principal application.Principal, input application.EventInput) (application.Event, error) {
	s.created = input
	if s.err != nil {
		return application.Event{}, s.err
	}
	return s.event, nil
}

func (s *stubEventService) GetEvent(ctx context.Context, id int64) (application.Event, error) {
	return s.event, s.err
}

func (s *stubEventService) ListEvents(ctx context.Context, window application.EventRange) ([]application.Event, error) {
	s.lastWindow = window
	return s.events, s.err
}

func (s *stubEventService) UpdateEvent(ctx context.Context, principal application.Principal, id int64, patch application.EventPatch) (application.Event, error) {
	return s.event, s.err
}

func (s *stubEventService) DeleteEvent(ctx context.Context, principal application.Principal, id int64) error {
	return s.err
}

func (s *stubEventService) ListEventsForUser(ctx context.Context, principal application.Principal, userID int64, after *time.Time) ([]application.Event, error) {
	s.lastAfter = after
	return s.events, s.err
}

type stubRecurrenceService struct {
	params      application.RepeatEventParams
	result      application.RepeatEventResult
	descriptors []application.RecurrenceDescriptor
	occurrences []application.Occurrence
	lastIDs     []int64
	err         error
}

func (s *stubRecurrenceService) RepeatEvent(ctx context.Context, params application.RepeatEventParams) (application.RepeatEventResult, error) {
	s.params = params
	return s.result, s.err
}

func (s *stubRecurrenceService) ListDescriptors(ctx context.Context) ([]application.RecurrenceDescriptor, error) {
	return s.descriptors, s.err
}

func (s *stubRecurrenceService) ListOccurrences(ctx context.Context, ids []int64) ([]application.Occurrence, error) {
	s.lastIDs = ids
	return s.occurrences, s.err
}

type stubAssignmentService struct {
	outcomes  []application.AssignOutcome
	calls     int
	assignees []application.User
	err       error
}

func (s *stubAssignmentService) Assign(ctx context.Context, principal application.Principal, eventID, userID int64) (application.AssignOutcome, error) {
	if s.err != nil {
		return 0, s.err
	}
	outcome := s.outcomes[s.calls%len(s.outcomes)]
	s.calls++
	return outcome, nil
}

func (s *stubAssignmentService) Unassign(ctx context.Context, principal application.Principal, eventID, userID int64) error {
	return s.err
}

func (s *stubAssignmentService) ListAssignees(ctx context.Context, eventID int64) ([]application.User, error) {
	return s.assignees, s.err
}

type stubUserService struct {
	user     application.User
	users    []application.User
	created  application.CreateUserParams
	password application.ChangePasswordParams
	err      error
}

func (s *stubUserService) CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error) {
	s.created = params
	return s.user, s.err
}

func (s *stubUserService) GetUser(ctx context.Context, id int64) (application.User, error) {
	return s.user, s.err
}

func (s *stubUserService) ListUsers(ctx context.Context, principal application.Principal, includeAdmins bool) ([]application.User, error) {
	return s.users, s.err
}

func (s *stubUserService) UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error) {
	return s.user, s.err
}

func (s *stubUserService) DeleteUser(ctx context.Context, principal application.Principal, id int64) error {
	return s.err
}

func (s *stubUserService) ChangePassword(ctx context.Context, params application.ChangePasswordParams) error {
	s.password = params
	return s.err
}

type stubCalendarService struct {
	entries []application.CalendarEntry
	err     error
}

func (s *stubCalendarService) Entries(ctx context.Context, from, to time.Time) ([]application.CalendarEntry, error) {
	return s.entries, s.err
}

// routerFixture wires every handler to stubs behind the full middleware chain.
type routerFixture struct {
	handler     http.Handler
	auth        *stubAuthenticator
	events      *stubEventService
	recurrences *stubRecurrenceService
	assignments *stubAssignmentService
	users       *stubUserService
	calendar    *stubCalendarService
	requestIDs  *testfixtures.RequestIDs
	logs        *bytes.Buffer
	healthErr   error
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	return newRouterFixtureWithOrigins(t, []string{"https://app.example.com"})
}

func newRouterFixtureWithOrigins(t *testing.T, origins []string) *routerFixture {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := &routerFixture{
		auth:        newStubAuthenticator(),
		events:      &stubEventService{},
		recurrences: &stubRecurrenceService{},
		assignments: &stubAssignmentService{outcomes: []application.AssignOutcome{application.AssignCreated}},
		users:       &stubUserService{},
		calendar:    &stubCalendarService{},
		requestIDs:  testfixtures.NewRequestIDs("test"),
		logs:        logs,
	}
	f.handler = NewRouter(RouterConfig{
		Auth:           NewAuthHandler(logger),
		Events:         NewEventHandler(f.events, logger),
		Recurrences:    NewRecurrenceHandler(f.recurrences, logger),
		Assignments:    NewAssignmentHandler(f.assignments, logger),
		Users:          NewUserHandler(f.users, logger),
		Calendar:       NewCalendarHandler(f.calendar, logger),
		Authenticator:  f.auth,
		Logger:         logger,
		AllowedOrigins: origins,
		RequestIDs:     f.requestIDs.Next,
		Health:         func(context.Context) error { return f.healthErr },
	})
	return f
}

// do sends a request as email. An empty email sends no credentials.
func (f *routerFixture) do(t *testing.T, method, target, email string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if email != "" {
		req.Header.Set("Authorization", basicAuth(email, password))
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func basicAuth(email, pw string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+pw))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func newPreflight(target, origin string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, target, nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	return req
}

func recorderFor(f *routerFixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}
