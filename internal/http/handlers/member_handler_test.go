package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/chat-services/internal/domain"
	"github.com/example/chat-services/internal/services"
)

// fakeMemberSvc implements MemberService with canned results.
type fakeMemberSvc struct {
	registerOut *domain.Member
	registerErr error
	getOut      *domain.Member
	getErr      error
	touchErr    error
	touchedID   string
}

func (f *fakeMemberSvc) Register(_ context.Context, name string) (*domain.Member, error) {
	return f.registerOut, f.registerErr
}

func (f *fakeMemberSvc) GetByID(_ context.Context, id string) (*domain.Member, error) {
	return f.getOut, f.getErr
}

func (f *fakeMemberSvc) TouchActivity(_ context.Context, id string) error {
	f.touchedID = id
	return f.touchErr
}

func memberRouter(svc MemberService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(svc, nil)
	r.POST("/members", h.RegisterMember)
	r.GET("/members/:id", h.GetMember)
	r.PUT("/members/:id/activity", h.TouchMemberActivity)
	return r
}

func TestRegisterMember_Created(t *testing.T) {
	m := &domain.Member{ID: "m1", Name: "Alice", JoinedAt: time.Now().UTC(), IsActive: true}
	r := memberRouter(&fakeMemberSvc{registerOut: m})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/members", bytes.NewBufferString(`{"name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got domain.Member
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || got.ID != "m1" {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}
}

func TestRegisterMember_BadPayload(t *testing.T) {
	r := memberRouter(&fakeMemberSvc{})

	for _, body := range []string{``, `{}`, `{"name":""}`, `not json`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/members", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d", body, w.Code)
		}
	}
}

func TestRegisterMember_ServiceErrors(t *testing.T) {
	// Validation error → 400 with the service message.
	r := memberRouter(&fakeMemberSvc{registerErr: services.ErrNameRequired})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/members", bytes.NewBufferString(`{"name":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation error: status=%d", w.Code)
	}

	// Anything else → 500 with register_failed code.
	r = memberRouter(&fakeMemberSvc{registerErr: errors.New("db down")})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/members", bytes.NewBufferString(`{"name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("internal error: status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Code != ErrCodeRegisterFailed {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}
}

func TestGetMember_FoundNotFoundError(t *testing.T) {
	r := memberRouter(&fakeMemberSvc{getOut: &domain.Member{ID: "m1", Name: "Alice"}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/members/m1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("found: status=%d", w.Code)
	}

	r = memberRouter(&fakeMemberSvc{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/members/ghost", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing: status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Code != ErrCodeNotFound {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}

	r = memberRouter(&fakeMemberSvc{getErr: errors.New("db down")})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/members/m1", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("error: status=%d", w.Code)
	}
}

func TestTouchMemberActivity(t *testing.T) {
	svc := &fakeMemberSvc{}
	r := memberRouter(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/members/m1/activity", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("touch: status=%d body=%s", w.Code, w.Body.String())
	}
	if svc.touchedID != "m1" {
		t.Fatalf("touched id = %q", svc.touchedID)
	}

	r = memberRouter(&fakeMemberSvc{touchErr: services.ErrMemberIDRequired})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/members/x/activity", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation: status=%d", w.Code)
	}

	r = memberRouter(&fakeMemberSvc{touchErr: errors.New("db down")})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/members/x/activity", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("error: status=%d", w.Code)
	}
}
