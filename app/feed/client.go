package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

var _ ParseClient = (*RemoteClient)(nil)

// RemoteClient invokes a parse function deployed behind HTTP.
type RemoteClient struct {
	httpClient *http.Client
	endpoint   string
	authToken  string
}

func NewRemoteClient(httpClient *http.Client, endpoint, authToken string) *RemoteClient {
	return &RemoteClient{
		httpClient: httpClient,
		endpoint:   endpoint,
		authToken:  authToken,
	}
}

func (c *RemoteClient) Parse(ctx context.Context, parseReq ParseRequest) (*ParseResponse, error) {
	body, err := json.Marshal(parseReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(ErrFetchFailed, err, "Failed to invoke parse function: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(ErrFetchFailed, err, "Failed to read parse function response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error == "" {
			errResp.Error = fmt.Sprintf("Parse function returned %s", resp.Status)
		}
		return nil, &Error{
			Kind:       kindForStatus(resp.StatusCode),
			Message:    errResp.Error,
			StatusCode: resp.StatusCode,
		}
	}

	var parseResp ParseResponse
	if err := json.Unmarshal(data, &parseResp); err != nil {
		return nil, newError(ErrParseFailure, err, "Invalid parse function response: %v", err)
	}

	return &parseResp, nil
}
