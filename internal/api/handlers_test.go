package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"

	"medreel/internal/auth"
	"medreel/internal/config"
	"medreel/internal/history"
	"medreel/internal/service/account"
	"medreel/internal/service/chat"
	"medreel/internal/service/review"
	"medreel/internal/storage"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, prior []*schema.Message, input string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return fmt.Sprintf("echo: %s", input), nil
}

func TestChatEndToEndFlow(t *testing.T) {
	router, db, model := newTestServer(t)
	defer db.Close()

	registerDoctor(t, router, "doc@example.com", "password123")
	header, sessionID := login(t, router, "doc@example.com", "password123")
	if sessionID == "" {
		t.Fatalf("expected session id from login")
	}

	// Ordinary turn.
	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat/send",
		map[string]string{"content": "draft a script about flu shots"}, header)
	assertStatus(t, resp, http.StatusOK)
	var sendBody struct {
		Message   string `json:"message"`
		Finalized bool   `json:"finalized"`
	}
	decodeJSON(t, resp.Body.Bytes(), &sendBody)
	if sendBody.Finalized {
		t.Fatalf("unexpected finalized flag")
	}
	if sendBody.Message == "" {
		t.Fatalf("expected assistant reply")
	}

	// Finalizing turn creates a PENDING script.
	model.reply = "FINALIZED SCRIPT\nTitle: Flu Shots\nNarration."
	resp = doJSONRequest(t, router, http.MethodPost, "/api/chat/send",
		map[string]string{"content": "finalize it"}, header)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp.Body.Bytes(), &sendBody)
	if !sendBody.Finalized {
		t.Fatalf("expected finalized flag")
	}

	resp = doJSONRequest(t, router, http.MethodGet, "/api/chat/messages", nil, header)
	assertStatus(t, resp, http.StatusOK)
	var msgBody struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decodeJSON(t, resp.Body.Bytes(), &msgBody)
	if len(msgBody.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgBody.Messages))
	}
	if msgBody.Messages[0].Role != "user" || msgBody.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %+v", msgBody.Messages[:2])
	}

	var scriptCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM video_scripts WHERE status = 'PENDING'`).Scan(&scriptCount); err != nil {
		t.Fatalf("count scripts: %v", err)
	}
	if scriptCount != 1 {
		t.Fatalf("expected 1 pending script, got %d", scriptCount)
	}

	// Reset hides the thread.
	resp = doJSONRequest(t, router, http.MethodDelete, "/api/chat/messages", nil, header)
	assertStatus(t, resp, http.StatusNoContent)
	resp = doJSONRequest(t, router, http.MethodGet, "/api/chat/messages", nil, header)
	assertStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp.Body.Bytes(), &msgBody)
	if len(msgBody.Messages) != 0 {
		t.Fatalf("expected empty thread after reset, got %d", len(msgBody.Messages))
	}

	// Logout revokes the token.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/auth/logout", nil, header)
	assertStatus(t, resp, http.StatusNoContent)
	resp = doJSONRequest(t, router, http.MethodGet, "/api/chat/messages", nil, header)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestSendModelFailureReturnsRetryableError(t *testing.T) {
	router, db, model := newTestServer(t)
	defer db.Close()

	registerDoctor(t, router, "doc@example.com", "password123")
	header, _ := login(t, router, "doc@example.com", "password123")

	model.err = fmt.Errorf("provider down")
	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat/send",
		map[string]string{"content": "hello"}, header)
	assertStatus(t, resp, http.StatusBadGateway)

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chat_history`).Scan(&count); err != nil {
		t.Fatalf("count turns: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed turn persisted %d rows", count)
	}
}

func TestSendRejectsUnusableInput(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	registerDoctor(t, router, "doc@example.com", "password123")
	header, _ := login(t, router, "doc@example.com", "password123")

	for _, content := range []string{"", "   ", "<div></div>"} {
		resp := doJSONRequest(t, router, http.MethodPost, "/api/chat/send",
			map[string]string{"content": content}, header)
		assertStatus(t, resp, http.StatusBadRequest)
	}
}

func TestAdminScriptReview(t *testing.T) {
	router, db, model := newTestServer(t)
	defer db.Close()

	registerDoctor(t, router, "doc@example.com", "password123")
	docHeader, _ := login(t, router, "doc@example.com", "password123")

	model.reply = "FINALIZED SCRIPT\nNarration."
	resp := doJSONRequest(t, router, http.MethodPost, "/api/chat/send",
		map[string]string{"content": "finalize"}, docHeader)
	assertStatus(t, resp, http.StatusOK)

	adminHeader := loginAdmin(t, router, db)

	// Doctors cannot reach the review surface.
	resp = doJSONRequest(t, router, http.MethodGet, "/api/admin/scripts", nil, docHeader)
	assertStatus(t, resp, http.StatusForbidden)
	// Admins cannot chat.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/chat/send",
		map[string]string{"content": "hi"}, adminHeader)
	assertStatus(t, resp, http.StatusForbidden)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/admin/scripts?status=PENDING", nil, adminHeader)
	assertStatus(t, resp, http.StatusOK)
	var listBody struct {
		Scripts []struct {
			ID        string `json:"id"`
			UserEmail string `json:"user_email"`
		} `json:"scripts"`
		PendingCount int `json:"pending_count"`
	}
	decodeJSON(t, resp.Body.Bytes(), &listBody)
	if len(listBody.Scripts) != 1 || listBody.PendingCount != 1 {
		t.Fatalf("unexpected listing: %+v", listBody)
	}
	if listBody.Scripts[0].UserEmail != "doc@example.com" {
		t.Fatalf("author email = %q", listBody.Scripts[0].UserEmail)
	}
	scriptID := listBody.Scripts[0].ID

	resp = doJSONRequest(t, router, http.MethodPost,
		"/api/admin/scripts/"+scriptID+"/approve",
		map[string]string{"video_url": "https://cdn.example.com/v/1.mp4"}, adminHeader)
	assertStatus(t, resp, http.StatusNoContent)

	// Second decision conflicts.
	resp = doJSONRequest(t, router, http.MethodPost,
		"/api/admin/scripts/"+scriptID+"/reject",
		map[string]string{"reason": "changed my mind"}, adminHeader)
	assertStatus(t, resp, http.StatusConflict)

	// Unknown script is a 404.
	resp = doJSONRequest(t, router, http.MethodPost,
		"/api/admin/scripts/no-such-id/approve",
		map[string]string{"video_url": "https://x"}, adminHeader)
	assertStatus(t, resp, http.StatusNotFound)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/admin/scripts?status=BOGUS", nil, adminHeader)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestRoutesRequireAuth(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/chat/send"},
		{http.MethodGet, "/api/chat/messages"},
		{http.MethodDelete, "/api/chat/messages"},
		{http.MethodGet, "/api/admin/scripts"},
	} {
		resp := doJSONRequest(t, router, route.method, route.path, nil, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	}
}

func TestLoginFailures(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	registerDoctor(t, router, "doc@example.com", "password123")
	resp := doJSONRequest(t, router, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "doc@example.com", "password": "wrong"}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
	resp = doJSONRequest(t, router, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "nobody@example.com", "password": "password123"}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB, *fakeCompleter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	model := &fakeCompleter{}
	accounts := account.NewService(db)
	authSvc := auth.NewService(db, nil, time.Hour)
	engine := chat.NewService(db, history.NewAdapter(history.NewStore(db)), model)
	reviewSvc := review.NewService(db)
	handler := NewHandler(accounts, authSvc, engine, reviewSvc)

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db, model
}

func registerDoctor(t *testing.T, router *gin.Engine, email, password string) {
	t.Helper()
	resp := doJSONRequest(t, router, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "name": "Test Doctor", "password": password}, nil)
	assertStatus(t, resp, http.StatusCreated)
}

func login(t *testing.T, router *gin.Engine, email, password string) (map[string]string, string) {
	t.Helper()
	resp := doJSONRequest(t, router, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, nil)
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		AuthToken string `json:"auth_token"`
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.AuthToken == "" {
		t.Fatalf("expected auth token from login")
	}
	return map[string]string{"Authorization": "Bearer " + body.AuthToken}, body.SessionID
}

func loginAdmin(t *testing.T, router *gin.Engine, db *sql.DB) map[string]string {
	t.Helper()
	accounts := account.NewService(db)
	if _, err := accounts.EnsureAdmin(context.Background(), "admin@example.com", "Admin", "adminsecret"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	header, _ := login(t, router, "admin@example.com", "adminsecret")
	return header
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}
