package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parishroll/parishroll/backend/internal/attendance"
	"github.com/parishroll/parishroll/backend/internal/auth"
	"github.com/parishroll/parishroll/backend/internal/booking"
	"github.com/parishroll/parishroll/backend/internal/database"
	"github.com/parishroll/parishroll/backend/internal/groups"
	"github.com/parishroll/parishroll/backend/internal/members"
	"github.com/parishroll/parishroll/backend/internal/notices"
	"github.com/parishroll/parishroll/backend/internal/parish"
	"github.com/parishroll/parishroll/backend/internal/server"
	"github.com/parishroll/parishroll/backend/internal/users"
	"go.uber.org/zap"
)

const (
	signingSecret   = "integration-secret"
	accountPassword = "open sesame"
	today           = "2026-03-01"
	jsonContentType = "application/json"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func TestAttendanceLifecycle(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(testContext.TempDir(), "integration.db")
	db, err := database.OpenSQLite(dbPath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	parishGroup := groups.Group{Name: "Parish One"}
	if err := db.Create(&parishGroup).Error; err != nil {
		testContext.Fatalf("failed to seed parish: %v", err)
	}
	subGroup := groups.Group{Name: "Group A", ParentID: &parishGroup.ID}
	if err := db.Create(&subGroup).Error; err != nil {
		testContext.Fatalf("failed to seed sub-group: %v", err)
	}
	hash, err := auth.HashPassword(accountPassword)
	if err != nil {
		testContext.Fatalf("failed to hash password: %v", err)
	}
	leader := users.User{Username: "leader-a", PasswordHash: hash, Name: "Leader A", Role: users.RoleGroupLeader, Active: true, GroupID: subGroup.ID}
	if err := db.Create(&leader).Error; err != nil {
		testContext.Fatalf("failed to seed leader: %v", err)
	}
	admin := users.User{Username: "admin", PasswordHash: hash, Name: "Admin", Role: users.RoleParishAdmin, Active: true, GroupID: parishGroup.ID}
	if err := db.Create(&admin).Error; err != nil {
		testContext.Fatalf("failed to seed admin: %v", err)
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(signingSecret),
		Issuer:        "parishroll-auth",
		Audience:      "parishroll-api",
		TokenTTL:      time.Hour,
		Clock:         fixedClock,
	})
	usersService, err := users.NewService(users.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build users service: %v", err)
	}
	membersService, err := members.NewService(members.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build members service: %v", err)
	}
	attendanceService, err := attendance.NewService(attendance.ServiceConfig{Database: db, Clock: fixedClock, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build attendance service: %v", err)
	}
	parishService, err := parish.NewService(parish.ServiceConfig{Database: db, Attendance: attendanceService, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build parish service: %v", err)
	}
	noticesService, err := notices.NewService(notices.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build notices service: %v", err)
	}
	bookingService, err := booking.NewService(booking.ServiceConfig{Database: db, Clock: fixedClock, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build booking service: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokenManager,
		Users:        usersService,
		Members:      membersService,
		Attendance:   attendanceService,
		Parish:       parishService,
		Notices:      noticesService,
		Booking:      bookingService,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	leaderToken := login(testContext, testServer.URL, "leader-a")
	adminToken := login(testContext, testServer.URL, "admin")

	memberID := createMember(testContext, testServer.URL, leaderToken, "First Member")

	saveBody, _ := json.Marshal(map[string]any{
		"date": today,
		"records": []map[string]any{
			{"memberId": memberID, "status": "Present", "talent": 5},
		},
	})
	saveResp := doRequest(testContext, http.MethodPost, testServer.URL+"/attendance", leaderToken, saveBody)
	defer saveResp.Body.Close()
	if saveResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected save status: %d", saveResp.StatusCode)
	}

	summaryResp := doRequest(testContext, http.MethodGet, testServer.URL+"/parish/attendance/summary?date="+today, adminToken, nil)
	defer summaryResp.Body.Close()
	if summaryResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected summary status: %d", summaryResp.StatusCode)
	}
	var summaries []parish.SummaryResponse
	if err := json.NewDecoder(summaryResp.Body).Decode(&summaries); err != nil {
		testContext.Fatalf("failed to decode summary: %v", err)
	}
	if len(summaries) != 1 || !summaries[0].Submitted || summaries[0].PresentCount != 1 || summaries[0].TotalTalentToday != 5 {
		testContext.Fatalf("unexpected summary: %#v", summaries)
	}

	deleteResp := doRequest(testContext, http.MethodDelete, testServer.URL+"/attendance?date="+today, leaderToken, nil)
	defer deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected delete status: %d", deleteResp.StatusCode)
	}

	rosterResp := doRequest(testContext, http.MethodGet, testServer.URL+"/members", leaderToken, nil)
	defer rosterResp.Body.Close()
	var roster []members.Response
	if err := json.NewDecoder(rosterResp.Body).Decode(&roster); err != nil {
		testContext.Fatalf("failed to decode roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Talent != 0 {
		testContext.Fatalf("expected balance rolled back after deletion, got %#v", roster)
	}
}

func login(testContext *testing.T, baseURL, username string) string {
	testContext.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": accountPassword})
	resp := doRequest(testContext, http.MethodPost, baseURL+"/auth/login", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		testContext.Fatalf("login failed with status %d", resp.StatusCode)
	}
	var profile users.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		testContext.Fatalf("failed to decode login response: %v", err)
	}
	return profile.Token
}

func createMember(testContext *testing.T, baseURL, token, name string) uint {
	testContext.Helper()

	body, _ := json.Marshal(map[string]string{"name": name})
	resp := doRequest(testContext, http.MethodPost, baseURL+"/members", token, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		testContext.Fatalf("member create failed with status %d", resp.StatusCode)
	}
	var member members.Response
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		testContext.Fatalf("failed to decode member: %v", err)
	}
	return member.ID
}

func doRequest(testContext *testing.T, method, url, token string, body []byte) *http.Response {
	testContext.Helper()

	request, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", jsonContentType)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	return resp
}
