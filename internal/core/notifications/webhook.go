// Package notifications delivers transfer notices to the external
// notification collaborator over HTTP. Delivery is best effort: the
// transfer core never consumes a result from it.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abhiraj33181/Banking-Management-System/internal/core/domain"
)

type Notifier struct {
	url    string
	client *http.Client
}

func NewNotifier(url string) *Notifier {
	return &Notifier{
		url: url,
		// Don't let a slow collaborator block the worker.
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// NotifyTransferSuccess posts the notice to the collaborator.
func (n *Notifier) NotifyTransferSuccess(ctx context.Context, notice domain.TransferNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Banking-Management-System/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
}
