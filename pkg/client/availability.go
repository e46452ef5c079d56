package client

import (
	"context"
	"net/url"
	"strings"
	"time"
)

type AvailabilityClient struct {
	httpClient *HttpClient
}

func NewAvailabilityClient(baseUrl string) *AvailabilityClient {
	return &AvailabilityClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *AvailabilityClient) Slots(ctx context.Context, staffID, serviceID string, start, end time.Time) (*Response, error) {
	q := rangeQuery(serviceID, start, end)
	return c.httpClient.GET(ctx, "/api/v1/staff/"+url.PathEscape(staffID)+"/slots?"+q.Encode())
}

func (c *AvailabilityClient) NextSlot(ctx context.Context, staffID, serviceID string, from time.Time) (*Response, error) {
	q := url.Values{}
	q.Set("service_id", serviceID)
	q.Set("from", from.Format(time.RFC3339))
	return c.httpClient.GET(ctx, "/api/v1/staff/"+url.PathEscape(staffID)+"/next-slot?"+q.Encode())
}

func (c *AvailabilityClient) Utilization(ctx context.Context, staffID string, start, end time.Time) (*Response, error) {
	q := rangeQuery("", start, end)
	return c.httpClient.GET(ctx, "/api/v1/staff/"+url.PathEscape(staffID)+"/utilization?"+q.Encode())
}

func (c *AvailabilityClient) MultiStaff(ctx context.Context, staffIDs []string, serviceID string, start, end time.Time) (*Response, error) {
	q := rangeQuery(serviceID, start, end)
	q.Set("staff_ids", strings.Join(staffIDs, ","))
	return c.httpClient.GET(ctx, "/api/v1/availability?"+q.Encode())
}

func rangeQuery(serviceID string, start, end time.Time) url.Values {
	q := url.Values{}
	if serviceID != "" {
		q.Set("service_id", serviceID)
	}
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	return q
}
