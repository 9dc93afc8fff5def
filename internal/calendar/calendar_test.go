package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

var testCreds = Credentials{ClientID: "cid", ClientSecret: "csecret", RefreshToken: "rtok"}

var testEvent = Event{
	Title:           "Dentist",
	Start:           "2026-11-02T09:00:00-05:00",
	End:             "2026-11-02T10:00:00-05:00",
	Location:        "Main St",
	ReminderMinutes: 15,
}

// fakeGoogle serves the token and events endpoints. A zero status means 200.
func fakeGoogle(t *testing.T, tokenStatus, eventStatus int, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "rtok" || r.PostForm.Get("client_id") != "cid" {
			t.Errorf("unexpected token form: %v", r.PostForm)
		}
		if tokenStatus != 0 {
			w.WriteHeader(tokenStatus)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"atok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/calendar/v3/calendars/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer atok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if gotBody != nil {
			if err := json.NewDecoder(r.Body).Decode(gotBody); err != nil {
				t.Errorf("decoding body: %v", err)
			}
			(*gotBody)["_path"] = r.URL.EscapedPath()
		}
		if eventStatus != 0 {
			w.WriteHeader(eventStatus)
			w.Write([]byte(`{"error":{"message":"forbidden"}}`))
			return
		}
		w.Write([]byte(`{"id":"evt123","htmlLink":"https://calendar.example/evt123"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(WithAPIURL(srv.URL), WithTokenURL(srv.URL+"/token"), WithHTTPClient(srv.Client()))
}

func TestCreate(t *testing.T) {
	var body map[string]any
	srv := fakeGoogle(t, 0, 0, &body)

	created, err := newTestClient(srv).Create(context.Background(), testCreds, testEvent)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.ID != "evt123" || created.Link != "https://calendar.example/evt123" {
		t.Errorf("Created = %+v", created)
	}

	if body["_path"] != "/calendar/v3/calendars/primary/events" {
		t.Errorf("path = %v", body["_path"])
	}
	if body["summary"] != "Dentist" || body["location"] != "Main St" {
		t.Errorf("summary/location = %v/%v", body["summary"], body["location"])
	}
	start := body["start"].(map[string]any)
	if start["dateTime"] != testEvent.Start || start["timeZone"] != DefaultTimeZone {
		t.Errorf("start = %v", start)
	}
	rem := body["reminders"].(map[string]any)
	if rem["useDefault"] != false {
		t.Errorf("useDefault = %v", rem["useDefault"])
	}
	overrides := rem["overrides"].([]any)
	first := overrides[0].(map[string]any)
	if first["method"] != "popup" || first["minutes"] != float64(15) {
		t.Errorf("override = %v", first)
	}
}

func TestCreate_CalendarIDEscaped(t *testing.T) {
	var body map[string]any
	srv := fakeGoogle(t, 0, 0, &body)

	creds := testCreds
	creds.CalendarID = "team@group.calendar.google.com"
	ev := testEvent
	ev.TimeZone = "UTC"

	if _, err := newTestClient(srv).Create(context.Background(), creds, ev); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if body["_path"] != "/calendar/v3/calendars/team@group.calendar.google.com/events" {
		t.Errorf("path = %v", body["_path"])
	}

	ev.CalendarID = "a/b"
	if _, err := newTestClient(srv).Create(context.Background(), creds, ev); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if body["_path"] != "/calendar/v3/calendars/a%2Fb/events" {
		t.Errorf("path = %v, want escaped slash", body["_path"])
	}
}

func TestCreate_TokenRejected(t *testing.T) {
	srv := fakeGoogle(t, http.StatusBadRequest, 0, nil)

	_, err := newTestClient(srv).Create(context.Background(), testCreds, testEvent)
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upErr.Op != "token exchange" || upErr.Status != http.StatusBadRequest {
		t.Errorf("UpstreamError = %+v", upErr)
	}
}

func TestCreate_EventRejected(t *testing.T) {
	srv := fakeGoogle(t, 0, http.StatusForbidden, nil)

	_, err := newTestClient(srv).Create(context.Background(), testCreds, testEvent)
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upErr.Op != "create event" || upErr.Status != http.StatusForbidden {
		t.Errorf("UpstreamError = %+v", upErr)
	}
}

func TestCreate_Validation(t *testing.T) {
	c := NewClient(WithAPIURL("http://127.0.0.1:0"))
	tests := []struct {
		name  string
		creds Credentials
		ev    Event
		want  error
	}{
		{"missing refresh token", Credentials{ClientID: "a", ClientSecret: "b"}, testEvent, ErrConfigurationMissing},
		{"missing title", testCreds, Event{Start: testEvent.Start, End: testEvent.End}, ErrInvalidEvent},
		{"bad start", testCreds, Event{Title: "x", Start: "tomorrow", End: testEvent.End}, ErrInvalidEvent},
		{"negative reminder", testCreds, Event{Title: "x", Start: testEvent.Start, End: testEvent.End, ReminderMinutes: -1}, ErrInvalidEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Create(context.Background(), tt.creds, tt.ev)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	content := "GOOGLE_CLIENT_ID=cid\nGOOGLE_CLIENT_SECRET=csecret\nGOOGLE_REFRESH_TOKEN=rtok\nGOOGLE_CALENDAR_ID=work\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials error: %v", err)
	}
	want := Credentials{ClientID: "cid", ClientSecret: "csecret", RefreshToken: "rtok", CalendarID: "work"}
	if creds != want {
		t.Errorf("creds = %+v, want %+v", creds, want)
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCredentials(filepath.Join(dir, "absent.env")); !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("missing file err = %v", err)
	}
	if _, err := LoadCredentials(""); !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("empty path err = %v", err)
	}

	partial := filepath.Join(dir, "partial.env")
	os.WriteFile(partial, []byte("GOOGLE_CLIENT_ID=cid\n"), 0o600)
	if _, err := LoadCredentials(partial); !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("partial file err = %v", err)
	}
}
