package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/push/expo"
)

// expoClient is the slice of the Expo client the sender needs.
type expoClient interface {
	Send(ctx context.Context, msg expo.Message) (*expo.Receipt, error)
}

// ExpoSender adapts the Expo push client to the pipeline's PushSender.
type ExpoSender struct {
	client  expoClient
	timeout time.Duration
}

// NewExpoSender builds the sender. The timeout bounds each dispatch so a
// slow push API cannot stall the sweep.
func NewExpoSender(client expoClient, timeout time.Duration) *ExpoSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExpoSender{client: client, timeout: timeout}
}

// Send builds the transport payload from the persisted notification and
// forwards it to Expo.
func (s *ExpoSender) Send(ctx context.Context, token string, notification models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var data map[string]any
	if len(notification.Data) > 0 {
		_ = json.Unmarshal(notification.Data, &data)
	}

	_, err := s.client.Send(ctx, expo.Message{
		To:       token,
		Title:    notification.Title,
		Body:     notification.Message,
		Priority: priorityFor(notification.Severity),
		Data:     data,
	})
	return err
}

func priorityFor(severity enums.AlertSeverity) string {
	if severity.Rank() >= enums.AlertSeverityHigh.Rank() {
		return "high"
	}
	return "default"
}
