package calendar

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	maxEvents      = 50
	untitledEvent  = "Sin título"
	statusCanceled = "cancelled"
	// googleTime matches the millisecond UTC form the Calendar API documents.
	googleTime = "2006-01-02T15:04:05.000Z07:00"
)

// Event is a calendar entry as shown on the dashboard.
type Event struct {
	ID        string  `json:"id"`
	Summary   string  `json:"summary"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	MeetLink  *string `json:"meetLink"`
	Organizer string  `json:"organizer"`
	Status    string  `json:"status"`
}

// AccessTokener returns a valid access token for a host.
type AccessTokener interface {
	AccessToken(ctx context.Context, host string) (string, error)
}

// Client lists a host's primary calendar events.
type Client struct {
	tokens AccessTokener
	opts   []option.ClientOption
	logger *zap.Logger
}

// NewClient creates a calendar client. opts are appended to every service, e.g. option.WithEndpoint.
func NewClient(tokens AccessTokener, logger *zap.Logger, opts ...option.ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{tokens: tokens, opts: opts, logger: logger}
}

// Events returns the non-cancelled events of host's primary calendar within w.
func (c *Client) Events(ctx context.Context, host string, w Window) ([]Event, error) {
	access, err := c.tokens.AccessToken(ctx, host)
	if err != nil {
		return nil, err
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}))
	svc, err := gcal.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.opts...)...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	res, err := svc.Events.List("primary").
		TimeMin(w.Min.UTC().Format(googleTime)).
		TimeMax(w.Max.UTC().Format(googleTime)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEvents).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Status == statusCanceled {
			continue
		}
		events = append(events, toEvent(item))
	}
	c.logger.Debug("calendar events listed", zap.String("host", host), zap.Int("count", len(events)))
	return events, nil
}

func toEvent(item *gcal.Event) Event {
	ev := Event{
		ID:       item.Id,
		Summary:  item.Summary,
		Start:    eventTime(item.Start),
		End:      eventTime(item.End),
		MeetLink: MeetLink(item),
		Status:   item.Status,
	}
	if ev.Summary == "" {
		ev.Summary = untitledEvent
	}
	if o := item.Organizer; o != nil {
		ev.Organizer = o.DisplayName
		if ev.Organizer == "" {
			ev.Organizer = o.Email
		}
	}
	return ev
}

func eventTime(t *gcal.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// MeetLink returns the event's video link: the hangout link, else the first video entry point.
func MeetLink(item *gcal.Event) *string {
	if item.HangoutLink != "" {
		link := item.HangoutLink
		return &link
	}
	if item.ConferenceData == nil {
		return nil
	}
	for _, ep := range item.ConferenceData.EntryPoints {
		if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
			uri := ep.Uri
			return &uri
		}
	}
	return nil
}

