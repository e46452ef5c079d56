package client

import (
	"context"
	"net/url"
	"time"
)

const bookingsPath = "/api/v1/bookings"

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *BookingClient) Book(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, bookingsPath, body)
}

// BookIdempotent sends the request with an Idempotency-Key so a retry
// replays the first response instead of booking twice.
func (c *BookingClient) BookIdempotent(ctx context.Context, body any, key string) (*Response, error) {
	return c.httpClient.Do(ctx, "POST", bookingsPath, body, map[string]string{"Idempotency-Key": key})
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, bookingsPath+"/id/"+url.PathEscape(id))
}

func (c *BookingClient) ListByStaff(ctx context.Context, staffID string, start, end time.Time) (*Response, error) {
	q := rangeQuery("", start, end)
	return c.httpClient.GET(ctx, "/api/v1/staff/"+url.PathEscape(staffID)+"/bookings?"+q.Encode())
}

func (c *BookingClient) Cancel(ctx context.Context, id string, actorID, reason string) (*Response, error) {
	body := map[string]string{"actor_id": actorID, "reason": reason}
	return c.httpClient.POST(ctx, bookingsPath+"/id/"+url.PathEscape(id)+"/cancel", body)
}

func (c *BookingClient) UpdateStatus(ctx context.Context, id string, status string) (*Response, error) {
	return c.httpClient.PATCH(ctx, bookingsPath+"/id/"+url.PathEscape(id)+"/status", map[string]string{"status": status})
}
