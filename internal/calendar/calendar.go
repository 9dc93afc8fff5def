package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultAPIURL   = "https://www.googleapis.com"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultTimeout  = 30 * time.Second

	// DefaultCalendarID is used when neither the event nor the secrets name one.
	DefaultCalendarID = "primary"
	// DefaultTimeZone applies to events without an explicit zone.
	DefaultTimeZone = "America/New_York"
	// DefaultReminderMinutes is the popup reminder lead time.
	DefaultReminderMinutes = 30
)

// ErrInvalidEvent is returned for events missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// UpstreamError is a non-success response from the token or calendar endpoint.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Status, e.Body)
}

// Client creates calendar events.
type Client struct {
	apiURL   string
	tokenURL string
	httpCli  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the calendar API base URL.
func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") }
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(u string) Option {
	return func(c *Client) { c.tokenURL = u }
}

// WithHTTPClient replaces the HTTP client used for both endpoints.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpCli = h }
}

// NewClient creates a calendar client with a 30 second request timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		apiURL:   defaultAPIURL,
		tokenURL: defaultTokenURL,
		httpCli:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Event describes the event to create.
type Event struct {
	Title           string
	Start           string
	End             string
	TimeZone        string
	Location        string
	Description     string
	CalendarID      string
	ReminderMinutes int
}

// Created identifies a newly created event.
type Created struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type reminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type reminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []reminderOverride `json:"overrides"`
}

type eventRequest struct {
	Summary     string    `json:"summary"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
	Reminders   reminders `json:"reminders"`
}

type eventResponse struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink"`
}

// Validate checks required fields and timestamp formats.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	for _, f := range []struct{ name, value string }{{"start", e.Start}, {"end", e.End}} {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidEvent, f.name)
		}
		if _, err := time.Parse(time.RFC3339, f.value); err != nil {
			return fmt.Errorf("%w: %s must be RFC 3339 with offset: %v", ErrInvalidEvent, f.name, err)
		}
	}
	if e.ReminderMinutes < 0 {
		return fmt.Errorf("%w: reminder minutes must not be negative", ErrInvalidEvent)
	}
	return nil
}

// Create exchanges the refresh token for an access token and posts the
// event. Failures are not retried.
func (c *Client) Create(ctx context.Context, creds Credentials, ev Event) (Created, error) {
	if err := creds.Validate(); err != nil {
		return Created{}, err
	}
	if err := ev.Validate(); err != nil {
		return Created{}, err
	}

	token, err := c.accessToken(ctx, creds)
	if err != nil {
		return Created{}, err
	}

	calendarID := ev.CalendarID
	if calendarID == "" {
		calendarID = creds.CalendarID
	}
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	tz := ev.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}

	payload := eventRequest{
		Summary:     ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
		Start:       eventTime{DateTime: ev.Start, TimeZone: tz},
		End:         eventTime{DateTime: ev.End, TimeZone: tz},
		Reminders: reminders{
			UseDefault: false,
			Overrides:  []reminderOverride{{Method: "popup", Minutes: ev.ReminderMinutes}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Created{}, fmt.Errorf("marshaling event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendar/v3/calendars/%s/events", c.apiURL, url.PathEscape(calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Created{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return Created{}, fmt.Errorf("creating event: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Created{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Created{}, &UpstreamError{Op: "create event", Status: resp.StatusCode, Body: string(respBody)}
	}

	var created eventResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return Created{}, fmt.Errorf("parsing response: %w", err)
	}
	return Created{ID: created.ID, Link: created.HTMLLink}, nil
}

// accessToken performs the refresh-token grant.
func (c *Client) accessToken(ctx context.Context, creds Credentials) (string, error) {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpCli)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", &UpstreamError{Op: "token exchange", Status: rerr.Response.StatusCode, Body: string(rerr.Body)}
		}
		return "", fmt.Errorf("token exchange: %w", err)
	}
	return tok.AccessToken, nil
}
