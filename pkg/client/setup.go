package client

import (
	"context"
	"net/url"
)

// SetupClient covers the administrative routes that feed the engine:
// directory entries, schedules, location hours and closures, and absences.
type SetupClient struct {
	httpClient *HttpClient
}

func NewSetupClient(baseUrl string) *SetupClient {
	return &SetupClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *SetupClient) CreateLocation(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/locations", body)
}

func (c *SetupClient) CreateStaff(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/staff", body)
}

func (c *SetupClient) CreateService(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/services", body)
}

func (c *SetupClient) CreateSchedule(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/schedules", body)
}

func (c *SetupClient) DeleteSchedule(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.DELETE(ctx, "/api/v1/schedules/id/"+url.PathEscape(id))
}

func (c *SetupClient) AddLocationHours(ctx context.Context, locationID string, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/locations/"+url.PathEscape(locationID)+"/hours", body)
}

func (c *SetupClient) AddClosure(ctx context.Context, locationID string, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/locations/"+url.PathEscape(locationID)+"/closures", body)
}

func (c *SetupClient) RequestAbsence(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/absences", body)
}

func (c *SetupClient) ApproveAbsence(ctx context.Context, id, approverID string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/absences/id/"+url.PathEscape(id)+"/approve", map[string]string{"actor_id": approverID})
}
