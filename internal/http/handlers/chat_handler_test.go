package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/resources"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/services"
)

// ---------- flexible service stubs (shared across handler tests) ----------

type stubConvSvc struct {
	handle func(context.Context, string, string, string) (services.ChatReply, error)
	status func(context.Context, string) (services.SessionStatus, error)
}

func (s stubConvSvc) HandleMessage(ctx context.Context, sessionID, message, language string) (services.ChatReply, error) {
	if s.handle != nil {
		return s.handle(ctx, sessionID, message, language)
	}
	return services.ChatReply{SessionID: "session_stub", Reply: "ok", Stage: domain.StageConsent}, nil
}

func (s stubConvSvc) Status(ctx context.Context, sessionID string) (services.SessionStatus, error) {
	if s.status != nil {
		return s.status(ctx, sessionID)
	}
	return services.SessionStatus{SessionID: sessionID}, nil
}

type stubReportSvc struct {
	submit   func(context.Context, services.SubmitRecord, bool) (services.SubmitResult, error)
	moderate func(context.Context, string, domain.ReportStatus) error
	points   func(context.Context, int) ([]services.MapPoint, error)
	stats    func(context.Context) (services.Stats, error)
}

func (s stubReportSvc) Submit(ctx context.Context, rec services.SubmitRecord, consent bool) (services.SubmitResult, error) {
	if s.submit != nil {
		return s.submit(ctx, rec, consent)
	}
	return services.SubmitResult{Accepted: true, ReportID: "9f2c4a1b", Status: domain.StatusVerified, Message: "received"}, nil
}

func (s stubReportSvc) Moderate(ctx context.Context, id string, status domain.ReportStatus) error {
	if s.moderate != nil {
		return s.moderate(ctx, id, status)
	}
	return nil
}

func (s stubReportSvc) MapPoints(ctx context.Context, limit int) ([]services.MapPoint, error) {
	if s.points != nil {
		return s.points(ctx, limit)
	}
	return nil, nil
}

func (s stubReportSvc) ReportStats(ctx context.Context) (services.Stats, error) {
	if s.stats != nil {
		return s.stats(ctx)
	}
	return services.Stats{}, nil
}

type stubDir struct {
	lookup func(county, category string) []resources.Contact
}

func (s stubDir) Lookup(county, category string) []resources.Contact {
	if s.lookup != nil {
		return s.lookup(county, category)
	}
	return nil
}

func newTestHandlers(conv ConversationService, rep ReportService, dir ResourceDirectory) *Handlers {
	if conv == nil {
		conv = stubConvSvc{}
	}
	if rep == nil {
		rep = stubReportSvc{}
	}
	if dir == nil {
		dir = stubDir{}
	}
	return New(conv, rep, dir)
}

// ---------- helpers-only tests ----------

func Test_language(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mk := func(header string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		req := httptest.NewRequest("POST", "/", nil)
		if header != "" {
			req.Header.Set("Accept-Language", header)
		}
		c.Request = req
		return c
	}

	if got := language(mk(""), "sw"); got != "sw" {
		t.Fatalf("body lang = %q", got)
	}
	if got := language(mk("sw-KE,sw;q=0.9"), ""); got != "sw" {
		t.Fatalf("header lang = %q", got)
	}
	if got := language(mk("fr-FR"), ""); got != "en" {
		t.Fatalf("unsupported header lang = %q", got)
	}
	if got := language(mk(""), "de"); got != "en" {
		t.Fatalf("unsupported body lang = %q", got)
	}
	if got := language(mk(""), ""); got != "en" {
		t.Fatalf("default lang = %q", got)
	}
}

// ---------- Chat ----------

func TestChat_BadJSON_Validation_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(conv ConversationService) *gin.Engine {
		h := newTestHandlers(conv, nil, nil)
		r := gin.New()
		r.POST("/chat", h.Chat)
		return r
	}

	// Bad JSON -> 400
	{
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString("{bad"))
		newRouter(stubConvSvc{}).ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// Empty message sentinel -> 400
	{
		conv := stubConvSvc{handle: func(context.Context, string, string, string) (services.ChatReply, error) {
			return services.ChatReply{}, services.ErrEmptyMessage
		}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":"   "}`))
		newRouter(conv).ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("empty message -> %d", w.Code)
		}
	}

	// Too long sentinel -> 400
	{
		conv := stubConvSvc{handle: func(context.Context, string, string, string) (services.ChatReply, error) {
			return services.ChatReply{}, services.ErrTooLong
		}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":"x"}`))
		newRouter(conv).ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("too long -> %d", w.Code)
		}
	}

	// Internal error -> 500 with chat_failed code
	{
		conv := stubConvSvc{handle: func(context.Context, string, string, string) (services.ChatReply, error) {
			return services.ChatReply{}, errors.New("db down")
		}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"message":"hello"}`))
		newRouter(conv).ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("internal -> %d", w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeChatFailed {
			t.Fatalf("error body = %s", w.Body.String())
		}
	}

	// Success -> 200, args forwarded
	{
		var got struct{ sid, msg, lang string }
		conv := stubConvSvc{handle: func(_ context.Context, sid, msg, lang string) (services.ChatReply, error) {
			got.sid, got.msg, got.lang = sid, msg, lang
			return services.ChatReply{SessionID: "session_abc", Reply: "I'm here.", Stage: domain.StageConsent, Progress: 0}, nil
		}}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"session_id":" session_abc ","message":"hello","language":"sw"}`))
		newRouter(conv).ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("chat -> %d body=%s", w.Code, w.Body.String())
		}
		if got.sid != "session_abc" || got.msg != "hello" || got.lang != "sw" {
			t.Fatalf("service args mismatch: %+v", got)
		}
		var out services.ChatReply
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.SessionID != "session_abc" || out.Reply != "I'm here." {
			t.Fatalf("unexpected reply: %#v", out)
		}
	}
}

// ---------- SessionStatus ----------

func TestSessionStatus_Success_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// success 200
	{
		conv := stubConvSvc{status: func(_ context.Context, id string) (services.SessionStatus, error) {
			return services.SessionStatus{SessionID: id, Progress: 0.35, LastStage: domain.StageTemporal, CanContinue: true}, nil
		}}
		h := newTestHandlers(conv, nil, nil)
		r := gin.New()
		r.GET("/sessions/:id/status", h.SessionStatus)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/session_abc/status", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status -> %d", w.Code)
		}
		var out services.SessionStatus
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.SessionID != "session_abc" || !out.CanContinue || out.LastStage != domain.StageTemporal {
			t.Fatalf("unexpected status: %#v", out)
		}
	}

	// not found -> 404
	{
		conv := stubConvSvc{status: func(context.Context, string) (services.SessionStatus, error) {
			return services.SessionStatus{}, services.ErrSessionNotFound
		}}
		h := newTestHandlers(conv, nil, nil)
		r := gin.New()
		r.GET("/sessions/:id/status", h.SessionStatus)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/session_missing/status", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("missing -> %d", w.Code)
		}
	}
}
