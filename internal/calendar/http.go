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

	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/parse"
	"trainer-booking-backend/internal/schedule"
)

// HTTPAdapter talks JSON to a calendar gateway service.
type HTTPAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPAdapter creates an adapter whose every request is capped at timeout.
func NewHTTPAdapter(baseURL, apiKey string, timeout time.Duration) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// statusError is a non-2xx gateway reply.
type statusError struct {
	method string
	path   string
	code   int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: received status code %d", e.method, e.path, e.code)
}

// eventGone maps a gateway 404 on an event onto ErrNoEvent.
func eventGone(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNoEvent, err)
	}
	return err
}

type eventPayload struct {
	BookingID string `json:"booking_id"`
	ClientID  string `json:"client_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Notes     string `json:"notes,omitempty"`
}

type busyResponse struct {
	Intervals []struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	} `json:"intervals"`
}

func payloadFor(b *model.Booking) eventPayload {
	return eventPayload{
		BookingID: b.ID,
		ClientID:  b.ClientID,
		Date:      b.Date,
		StartTime: b.StartTime.String(),
		EndTime:   b.EndTime.String(),
		Notes:     b.Notes,
	}
}

func (a *HTTPAdapter) GetConnectionStatus(ctx context.Context, trainerID string) (Status, error) {
	var st Status
	err := a.do(ctx, http.MethodGet, a.trainerPath(trainerID, "connection"), nil, &st)
	return st, err
}

func (a *HTTPAdapter) CreateEvent(ctx context.Context, b *model.Booking) (Event, error) {
	var ev Event
	if err := a.do(ctx, http.MethodPost, a.trainerPath(b.TrainerID, "events"), payloadFor(b), &ev); err != nil {
		return Event{}, err
	}
	if ev.ExternalEventID == "" {
		return Event{}, fmt.Errorf("calendar returned no event id for booking %s", b.ID)
	}
	return ev, nil
}

func (a *HTTPAdapter) UpdateEvent(ctx context.Context, b *model.Booking) error {
	if b.ExternalEventID == nil {
		return ErrNoEvent
	}
	return eventGone(a.do(ctx, http.MethodPut, a.trainerPath(b.TrainerID, "events", *b.ExternalEventID), payloadFor(b), nil))
}

func (a *HTTPAdapter) DeleteEvent(ctx context.Context, b *model.Booking) error {
	if b.ExternalEventID == nil {
		return ErrNoEvent
	}
	return eventGone(a.do(ctx, http.MethodDelete, a.trainerPath(b.TrainerID, "events", *b.ExternalEventID), nil, nil))
}

func (a *HTTPAdapter) GetBusyIntervals(ctx context.Context, trainerID string, start, end time.Time) ([]Busy, error) {
	q := url.Values{}
	q.Set("start_date", schedule.FormatDate(start))
	q.Set("end_date", schedule.FormatDate(end))

	var resp busyResponse
	if err := a.do(ctx, http.MethodGet, a.trainerPath(trainerID, "busy")+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := make([]Busy, 0, len(resp.Intervals))
	for _, iv := range resp.Intervals {
		d, err := parse.Date(iv.Date)
		if err != nil {
			return nil, fmt.Errorf("busy interval: %w", err)
		}
		w, err := parse.Interval(iv.StartTime, iv.EndTime)
		if err != nil {
			return nil, fmt.Errorf("busy interval on %s: %w", iv.Date, err)
		}
		out = append(out, Busy{Date: d, Window: w})
	}
	return out, nil
}

func (a *HTTPAdapter) trainerPath(trainerID string, parts ...string) string {
	segs := []string{a.baseURL, "trainers", url.PathEscape(trainerID)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

func (a *HTTPAdapter) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{method: method, path: req.URL.Path, code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal calendar response: %w", err)
	}
	return nil
}
