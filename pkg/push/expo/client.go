package expo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
)

// Message is a single push request against the Expo push API.
type Message struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Priority string         `json:"priority,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Receipt is the ticket Expo returns for an accepted message.
type Receipt struct {
	ID     string
	Status string
}

type pushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

type pushResponse struct {
	Data []pushTicket `json:"data"`
}

type apiError struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Client is a resty-backed Expo push API client.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds an Expo push client using the provided configuration values.
func NewClient(cfg config.PushConfig) *Client {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(cfg.Endpoint).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.AccessToken != "" {
		restyClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken))
	}
	return &Client{httpClient: restyClient}
}

// Send posts one message and returns the resulting ticket. A ticket with
// status "error" is returned as an error.
func (c *Client) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("push recipient token is required")
	}

	result := new(pushResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(result).
		SetError(apiErr).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("send expo push: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		message := ""
		if len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return nil, fmt.Errorf("expo push api error: status=%d, message=%s", resp.StatusCode(), message)
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("expo push api returned no ticket")
	}

	ticket := result.Data[0]
	if ticket.Status != "ok" {
		return nil, fmt.Errorf("expo push rejected: %s", ticket.Message)
	}

	return &Receipt{ID: ticket.ID, Status: ticket.Status}, nil
}
