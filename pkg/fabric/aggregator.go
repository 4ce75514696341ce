package fabric

import (
	"context"
	"net/url"
)

// HTTPAggregatorClient talks to the aggregator node's control plane.
type HTTPAggregatorClient struct {
	api *httpAPI
}

// NewHTTPAggregatorClient builds a client for the aggregator control
// plane at address. credentialsRef names the environment variable
// holding the bearer token.
func NewHTTPAggregatorClient(address, credentialsRef string) *HTTPAggregatorClient {
	return &HTTPAggregatorClient{api: newHTTPAPI(address, credentialsRef)}
}

type connectRequest struct {
	NQN     string `json:"nqn"`
	Address string `json:"address"`
}

// Connect attaches the aggregator to an export. Connecting to an
// already-attached export is accepted by the control plane.
func (c *HTTPAggregatorClient) Connect(ctx context.Context, export Export) error {
	_, err := c.api.do(ctx, "POST", "/v1/connections", connectRequest{
		NQN:     export.NQN,
		Address: export.Address,
	}, nil)
	return err
}

// Disconnect detaches the aggregator from an export. Absent
// attachments are treated as already disconnected.
func (c *HTTPAggregatorClient) Disconnect(ctx context.Context, nqn string) error {
	_, err := c.api.do(ctx, "DELETE", "/v1/connections/"+url.PathEscape(nqn), nil, nil)
	return err
}

// ConnectionStatus reports the attachment for an NQN.
func (c *HTTPAggregatorClient) ConnectionStatus(ctx context.Context, nqn string) (Connection, bool, error) {
	var conn Connection
	found, err := c.api.do(ctx, "GET", "/v1/connections/"+url.PathEscape(nqn), nil, &conn)
	if err != nil {
		return Connection{}, false, err
	}
	return conn, found, nil
}

type reexportRequest struct {
	TargetID    string `json:"target_id"`
	AggregateID string `json:"aggregate_id"`
}

// CreateReexport re-exposes an aggregate to a downstream target.
func (c *HTTPAggregatorClient) CreateReexport(ctx context.Context, aggregateID, targetID string) error {
	_, err := c.api.do(ctx, "POST", "/v1/reexports", reexportRequest{
		TargetID:    targetID,
		AggregateID: aggregateID,
	}, nil)
	return err
}

// ReexportStatus reports a downstream re-export.
func (c *HTTPAggregatorClient) ReexportStatus(ctx context.Context, targetID string) (ReexportState, bool, error) {
	var state ReexportState
	found, err := c.api.do(ctx, "GET", "/v1/reexports/"+url.PathEscape(targetID), nil, &state)
	if err != nil {
		return ReexportState{}, false, err
	}
	return state, found, nil
}

// DeleteReexport removes a downstream re-export.
func (c *HTTPAggregatorClient) DeleteReexport(ctx context.Context, targetID string) error {
	_, err := c.api.do(ctx, "DELETE", "/v1/reexports/"+url.PathEscape(targetID), nil, nil)
	return err
}
