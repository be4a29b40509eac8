package simklapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DeviceCodeResponse is the decoded body of the device-code auth start
// call, used to show the user a verification URL and code.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenResponse is the decoded body of a successful device-code poll.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// StartDeviceAuth begins the device-code flow, returning a code for the
// user to enter at VerificationURL.
func (c *Client) StartDeviceAuth(ctx context.Context) (*DeviceCodeResponse, error) {
	reqURL := fmt.Sprintf("%s/oauth/pin?client_id=%s", baseURL, url.QueryEscape(c.clientID))

	req, err := newJSONRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	var out DeviceCodeResponse
	if _, err := c.do(req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollDeviceAuth checks whether the user has completed the verification
// step. It returns (nil, nil) while authorization is still pending.
func (c *Client) PollDeviceAuth(ctx context.Context, userCode string) (*TokenResponse, error) {
	reqURL := fmt.Sprintf("%s/oauth/pin/%s?client_id=%s", baseURL, url.PathEscape(userCode), url.QueryEscape(c.clientID))

	req, err := newJSONRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	c.setHeaders(req, "")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simkl api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Result string `json:"result"`
			Access string `json:"access_token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode device auth poll: %w", err)
		}
		if body.Result != "OK" || body.Access == "" {
			return nil, nil
		}
		return &TokenResponse{AccessToken: body.Access}, nil
	case http.StatusNotFound:
		// Pending authorization is the expected steady state while polling.
		return nil, nil
	default:
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("simkl device auth poll failed: %s - %s", resp.Status, string(raw))
	}
}
