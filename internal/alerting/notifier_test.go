package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func emergencyRequest() Request {
	return Request{
		ID:          uuid.New(),
		Kind:        KindEmergency,
		Title:       "🚨 AAVE Alert: HF 1.10",
		Message:     "body",
		Priority:    PriorityEmergency,
		Retry:       60 * time.Second,
		Expire:      time.Hour,
		ActionURL:   "https://app.aave.com/",
		ActionLabel: "AAVE App",
	}
}

func reportRequest() Request {
	return Request{
		ID:       uuid.New(),
		Kind:     KindMorning,
		Title:    "☀️ Morning AAVE Report",
		Message:  "body",
		Priority: PriorityNormal,
	}
}

func TestPushoverEmergencyPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("Content-Type 应为 application/json, 实际 %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 1, "request": "req-1", "receipt": "rcpt"})
	}))
	defer srv.Close()

	n := NewPushoverNotifier(PushoverOptions{AppToken: "app", UserKey: "user", Sound: "echo", APIURL: srv.URL}, testLogger())
	if err := n.Send(context.Background(), emergencyRequest()); err != nil {
		t.Fatalf("Pushover Send 应成功: %v", err)
	}

	if received["token"] != "app" || received["user"] != "user" {
		t.Fatalf("token/user 不正确: %#v", received)
	}
	if received["priority"].(float64) != 2 {
		t.Fatalf("priority 应为 2: %#v", received["priority"])
	}
	if received["retry"].(float64) != 60 || received["expire"].(float64) != 3600 {
		t.Fatalf("retry/expire 不正确: %#v", received)
	}
	if received["url"] != "https://app.aave.com/" || received["url_title"] != "AAVE App" {
		t.Fatalf("url 不正确: %#v", received)
	}
	if received["sound"] != "echo" {
		t.Fatalf("sound 不正确: %#v", received["sound"])
	}
}

func TestPushoverNormalOmitsRetryExpire(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 1})
	}))
	defer srv.Close()

	n := NewPushoverNotifier(PushoverOptions{AppToken: "app", UserKey: "user", APIURL: srv.URL}, testLogger())
	if err := n.Send(context.Background(), reportRequest()); err != nil {
		t.Fatalf("Pushover Send 应成功: %v", err)
	}
	if _, ok := received["retry"]; ok {
		t.Fatalf("普通优先级不应包含 retry: %#v", received)
	}
	if _, ok := received["expire"]; ok {
		t.Fatalf("普通优先级不应包含 expire: %#v", received)
	}
	if received["priority"].(float64) != 0 {
		t.Fatalf("priority 应为 0: %#v", received["priority"])
	}
}

func TestPushoverAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 0, "errors": []string{"user key is invalid"}})
	}))
	defer srv.Close()

	n := NewPushoverNotifier(PushoverOptions{AppToken: "app", UserKey: "bad", APIURL: srv.URL}, testLogger())
	err := n.Send(context.Background(), reportRequest())
	if err == nil {
		t.Fatal("HTTP 400 应返回错误")
	}
	if !strings.Contains(err.Error(), "user key is invalid") {
		t.Fatalf("错误应包含 API 信息: %v", err)
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Send(context.Background(), emergencyRequest()); err != nil {
		t.Fatalf("Telegram Send 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	text, _ := received["text"].(string)
	if !strings.HasPrefix(text, "[EMERGENCY] ") || !strings.Contains(text, "https://app.aave.com/") {
		t.Fatalf("text 不正确: %q", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Send(context.Background(), reportRequest()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Send(ctx context.Context, req Request) error {
	s.calls++
	return s.err
}

func TestFanoutPartialFailureSucceeds(t *testing.T) {
	ok := &stubNotifier{}
	bad := &stubNotifier{err: errors.New("boom")}
	f := NewFanout(testLogger(), Named{Channel: "pushover", Notifier: ok}, Named{Channel: "telegram", Notifier: bad})

	if err := f.Send(context.Background(), reportRequest()); err != nil {
		t.Fatalf("部分渠道成功时不应报错: %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("每个渠道都应调用一次: %d %d", ok.calls, bad.calls)
	}
}

func TestFanoutAllFail(t *testing.T) {
	f := NewFanout(testLogger(),
		Named{Channel: "pushover", Notifier: &stubNotifier{err: errors.New("a")}},
		Named{Channel: "telegram", Notifier: &stubNotifier{err: errors.New("b")}},
	)
	err := f.Send(context.Background(), reportRequest())
	if err == nil {
		t.Fatal("全部渠道失败应报错")
	}
	if !strings.Contains(err.Error(), "pushover: a") || !strings.Contains(err.Error(), "telegram: b") {
		t.Fatalf("错误应合并所有渠道: %v", err)
	}

	if err := NewFanout(testLogger()).Send(context.Background(), reportRequest()); err == nil {
		t.Fatal("无渠道应报错")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
