package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarEvent is the minimal shape mirrored to the user's calendar.
type CalendarEvent struct {
	Summary string
	Start   time.Time
	End     time.Time
}

type CalendarClient interface {
	InsertEvent(ctx context.Context, refreshToken string, event *CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, refreshToken, eventID string) error
}

type calendarClient struct {
	oauth OAuthClient
}

func NewCalendarClient(oauth OAuthClient) CalendarClient {
	return &calendarClient{oauth: oauth}
}

func (c *calendarClient) service(ctx context.Context, refreshToken string) (*calendar.Service, error) {
	ts := c.oauth.TokenSource(ctx, refreshToken, KindCalendar)
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func (c *calendarClient) InsertEvent(ctx context.Context, refreshToken string, event *CalendarEvent) (string, error) {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert("primary", &calendar.Event{
		Summary: event.Summary,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: "Asia/Kolkata",
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: "Asia/Kolkata",
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent treats an already-deleted event as success so retries and
// user-side deletions do not wedge the sync.
func (c *calendarClient) DeleteEvent(ctx context.Context, refreshToken, eventID string) error {
	svc, err := c.service(ctx, refreshToken)
	if err != nil {
		return err
	}

	err = svc.Events.Delete("primary", eventID).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			return nil
		}
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	return nil
}
