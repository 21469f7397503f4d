package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/parishroll/parishroll/backend/internal/attendance"
	"github.com/parishroll/parishroll/backend/internal/auth"
	"github.com/parishroll/parishroll/backend/internal/booking"
	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/members"
	"github.com/parishroll/parishroll/backend/internal/notices"
	"github.com/parishroll/parishroll/backend/internal/parish"
	"github.com/parishroll/parishroll/backend/internal/users"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "router-test-secret"
	testPassword      = "open sesame"
	testToday         = "2026-03-01"
)

func testClock() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

type routerFixture struct {
	handler http.Handler
	db      *gorm.DB
	leader  users.User
	admin   users.User
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&groups.Group{}, &users.User{}, &members.Member{}, &attendance.Snapshot{},
		&notices.Notice{}, &notices.Comment{}, &booking.Place{}, &booking.Booking{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	parishGroup := groups.Group{Name: "Parish One"}
	if err := db.Create(&parishGroup).Error; err != nil {
		t.Fatalf("failed to seed parish: %v", err)
	}
	subGroup := groups.Group{Name: "Group A", ParentID: &parishGroup.ID}
	if err := db.Create(&subGroup).Error; err != nil {
		t.Fatalf("failed to seed sub-group: %v", err)
	}

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	leader := users.User{Username: "leader-a", PasswordHash: hash, Name: "Leader A", Role: users.RoleGroupLeader, Active: true, GroupID: subGroup.ID}
	if err := db.Create(&leader).Error; err != nil {
		t.Fatalf("failed to seed leader: %v", err)
	}
	admin := users.User{Username: "admin", PasswordHash: hash, Name: "Admin", Role: users.RoleParishAdmin, Active: true, GroupID: parishGroup.ID}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "parishroll-auth",
		Audience:      "parishroll-api",
		TokenTTL:      time.Hour,
		Clock:         testClock,
	})

	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	membersService, err := members.NewService(members.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build members service: %v", err)
	}
	attendanceService, err := attendance.NewService(attendance.ServiceConfig{Database: db, Clock: testClock})
	if err != nil {
		t.Fatalf("failed to build attendance service: %v", err)
	}
	parishService, err := parish.NewService(parish.ServiceConfig{Database: db, Attendance: attendanceService})
	if err != nil {
		t.Fatalf("failed to build parish service: %v", err)
	}
	noticesService, err := notices.NewService(notices.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build notices service: %v", err)
	}
	bookingService, err := booking.NewService(booking.ServiceConfig{Database: db, Clock: testClock})
	if err != nil {
		t.Fatalf("failed to build booking service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager: tokenManager,
		Users:        usersService,
		Members:      membersService,
		Attendance:   attendanceService,
		Parish:       parishService,
		Notices:      noticesService,
		Booking:      bookingService,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return routerFixture{handler: handler, db: db, leader: leader, admin: admin}
}

func (f routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		payload = bytes.NewBuffer(encoded)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	request := httptest.NewRequest(method, path, payload)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func (f routerFixture) login(t *testing.T, username string) string {
	t.Helper()

	recorder := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var profile users.Profile
	if err := json.Unmarshal(recorder.Body.Bytes(), &profile); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if profile.Token == "" {
		t.Fatalf("expected a token in the login response")
	}
	return profile.Token
}

func TestLoginReturnsProfileWithToken(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "leader-a",
		"password": testPassword,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	var profile users.Profile
	if err := json.Unmarshal(recorder.Body.Bytes(), &profile); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profile.Name != "Leader A" || profile.GroupName != "Group A" || profile.Token == "" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if recorder.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "leader-a",
		"password": "wrong",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(t, http.MethodGet, "/members", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
}

func TestMeReturnsCurrentAccount(t *testing.T) {
	fixture := newRouterFixture(t)
	token := fixture.login(t, "leader-a")

	recorder := fixture.do(t, http.MethodGet, "/auth/me", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var profile users.Profile
	if err := json.Unmarshal(recorder.Body.Bytes(), &profile); err != nil {
		t.Fatalf("failed to decode profile: %v", err)
	}
	if profile.Name != "Leader A" || profile.Token != "" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestMemberAndAttendanceFlow(t *testing.T) {
	fixture := newRouterFixture(t)
	token := fixture.login(t, "leader-a")

	created := fixture.do(t, http.MethodPost, "/members", token, map[string]string{"name": "First", "contact": "010-1234"})
	if created.Code != http.StatusCreated {
		t.Fatalf("unexpected member create status %d: %s", created.Code, created.Body.String())
	}
	var member members.Response
	if err := json.Unmarshal(created.Body.Bytes(), &member); err != nil {
		t.Fatalf("failed to decode member: %v", err)
	}

	saved := fixture.do(t, http.MethodPost, "/attendance", token, map[string]any{
		"date": testToday,
		"records": []map[string]any{
			{"memberId": member.ID, "status": "Present", "talent": 5},
		},
	})
	if saved.Code != http.StatusOK {
		t.Fatalf("unexpected attendance save status %d: %s", saved.Code, saved.Body.String())
	}

	loaded := fixture.do(t, http.MethodGet, "/attendance?date="+testToday, token, nil)
	if loaded.Code != http.StatusOK {
		t.Fatalf("unexpected attendance load status %d: %s", loaded.Code, loaded.Body.String())
	}
	var view attendance.DayView
	if err := json.Unmarshal(loaded.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode day view: %v", err)
	}
	if !view.SnapshotLoaded || len(view.Records) != 1 || view.Records[0].Talent != 5 {
		t.Fatalf("unexpected day view: %+v", view)
	}

	roster := fixture.do(t, http.MethodGet, "/members", token, nil)
	if roster.Code != http.StatusOK {
		t.Fatalf("unexpected roster status %d", roster.Code)
	}
	var list []members.Response
	if err := json.Unmarshal(roster.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode roster: %v", err)
	}
	if len(list) != 1 || list[0].Talent != 5 {
		t.Fatalf("expected balance visible on the roster, got %+v", list)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	fixture := newRouterFixture(t)
	leaderToken := fixture.login(t, "leader-a")
	adminToken := fixture.login(t, "admin")

	// Group leaders cannot author notices.
	forbidden := fixture.do(t, http.MethodPost, "/notice", leaderToken, map[string]any{"title": "T", "content": "C"})
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", forbidden.Code, forbidden.Body.String())
	}

	missing := fixture.do(t, http.MethodPut, "/members/999", leaderToken, map[string]string{"name": "Ghost"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", missing.Code, missing.Body.String())
	}

	invalid := fixture.do(t, http.MethodGet, "/attendance?date=bogus", leaderToken, nil)
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", invalid.Code, invalid.Body.String())
	}

	place := booking.Place{Name: "Main Hall", Active: true}
	if err := fixture.db.Create(&place).Error; err != nil {
		t.Fatalf("failed to seed place: %v", err)
	}
	first := fixture.do(t, http.MethodPost, "/reservation", adminToken, map[string]any{
		"placeId": place.ID, "date": testToday, "time": "10:00", "reason": "meeting",
	})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	conflict := fixture.do(t, http.MethodPost, "/reservation", leaderToken, map[string]any{
		"placeId": place.ID, "date": testToday, "time": "10:00", "reason": "practice",
	})
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", conflict.Code, conflict.Body.String())
	}
}

func TestParishRoutesAreRoleGated(t *testing.T) {
	fixture := newRouterFixture(t)
	leaderToken := fixture.login(t, "leader-a")
	adminToken := fixture.login(t, "admin")

	denied := fixture.do(t, http.MethodGet, "/parish/groups", leaderToken, nil)
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for leader, got %d", denied.Code)
	}

	allowed := fixture.do(t, http.MethodGet, "/parish/groups", adminToken, nil)
	if allowed.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", allowed.Code, allowed.Body.String())
	}
	var subGroups []parish.GroupResponse
	if err := json.Unmarshal(allowed.Body.Bytes(), &subGroups); err != nil {
		t.Fatalf("failed to decode sub-groups: %v", err)
	}
	if len(subGroups) != 1 || subGroups[0].GroupName != "Group A" || subGroups[0].LeaderName != "Leader A" {
		t.Fatalf("unexpected sub-groups: %+v", subGroups)
	}
}
