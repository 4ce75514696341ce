package fabric

import (
	"context"
	"net/url"
)

// HTTPOpusClient talks to the Opus RAID engine on the aggregator.
type HTTPOpusClient struct {
	api *httpAPI
}

// NewHTTPOpusClient builds a client for the Opus control plane at
// address. credentialsRef names the environment variable holding the
// bearer token.
func NewHTTPOpusClient(address, credentialsRef string) *HTTPOpusClient {
	return &HTTPOpusClient{api: newHTTPAPI(address, credentialsRef)}
}

// CreateAggregate builds the aggregate from connected members. Opus
// accepts a resubmission of an identical spec for an existing
// aggregate.
func (c *HTTPOpusClient) CreateAggregate(ctx context.Context, spec AggregateSpec) error {
	_, err := c.api.do(ctx, "POST", "/v1/aggregates", spec, nil)
	return err
}

// AggregateStatus reports an aggregate.
func (c *HTTPOpusClient) AggregateStatus(ctx context.Context, id string) (AggregateState, bool, error) {
	var state AggregateState
	found, err := c.api.do(ctx, "GET", "/v1/aggregates/"+url.PathEscape(id), nil, &state)
	if err != nil {
		return AggregateState{}, false, err
	}
	return state, found, nil
}
