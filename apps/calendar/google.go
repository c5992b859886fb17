package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talkbase-io/talkbase-backend/apps/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleCalendarBase = "https://www.googleapis.com/calendar/v3"

// googleCredentials is the decoded shape of CalendarIntegration.Credentials
type googleCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

// GoogleProvider talks to the Google Calendar REST API. Token refresh is
// handled by the oauth2 transport.
type GoogleProvider struct {
	calendarID string
	httpClient *http.Client
	baseURL    string
}

func NewGoogleProvider(integration *models.CalendarIntegration) (*GoogleProvider, error) {
	var creds googleCredentials
	if err := json.Unmarshal(integration.Credentials, &creds); err != nil {
		return nil, fmt.Errorf("invalid google calendar credentials: %w", err)
	}
	if creds.RefreshToken == "" && creds.AccessToken == "" {
		return nil, fmt.Errorf("google calendar credentials missing tokens")
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
	}
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}

	calendarID := integration.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	client := conf.Client(context.Background(), token)
	client.Timeout = 15 * time.Second

	return &GoogleProvider{
		calendarID: calendarID,
		httpClient: client,
		baseURL:    googleCalendarBase,
	}, nil
}

// FreeBusy returns the busy intervals of the calendar between from and to
func (g *GoogleProvider) FreeBusy(ctx context.Context, from, to time.Time) ([]BusySlot, error) {
	body := map[string]interface{}{
		"timeMin": from.Format(time.RFC3339),
		"timeMax": to.Format(time.RFC3339),
		"items":   []map[string]string{{"id": g.calendarID}},
	}

	respBody, err := g.post(ctx, "/freeBusy", body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Calendars map[string]struct {
			Busy []struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"busy"`
		} `json:"calendars"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse freebusy response: %w", err)
	}

	var slots []BusySlot
	for _, cal := range result.Calendars {
		for _, busy := range cal.Busy {
			slots = append(slots, BusySlot{Start: busy.Start, End: busy.End})
		}
	}
	return slots, nil
}

// CreateEvent books an event and returns its HTML link
func (g *GoogleProvider) CreateEvent(ctx context.Context, event Event) (string, error) {
	body := map[string]interface{}{
		"summary": event.Summary,
		"start":   map[string]string{"dateTime": event.Start.Format(time.RFC3339)},
		"end":     map[string]string{"dateTime": event.End.Format(time.RFC3339)},
	}
	if event.Attendee != "" {
		body["attendees"] = []map[string]string{{"email": event.Attendee}}
	}

	respBody, err := g.post(ctx, "/calendars/"+g.calendarID+"/events", body)
	if err != nil {
		return "", err
	}

	var result struct {
		ID       string `json:"id"`
		HTMLLink string `json:"htmlLink"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse event response: %w", err)
	}
	if result.HTMLLink != "" {
		return result.HTMLLink, nil
	}
	return result.ID, nil
}

func (g *GoogleProvider) post(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("google calendar error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
