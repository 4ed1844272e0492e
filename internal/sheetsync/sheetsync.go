package sheetsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"supermart/internal/domain"
)

// Notifier posts completed sales to a spreadsheet webhook. Delivery is best
// effort: one attempt, bounded by a timeout, failures only logged.
type Notifier struct {
	client  *http.Client
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{client: &http.Client{}, timeout: timeout}
}

type payload struct {
	Event   string         `json:"event"`
	Receipt domain.Receipt `json:"receipt"`
	SentAt  time.Time      `json:"sent_at"`
}

// SaleCompleted starts the upload in the background and returns immediately.
// An empty url disables the sync.
func (n *Notifier) SaleCompleted(receipt domain.Receipt, url string) {
	if url == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.post(receipt, url); err != nil {
			log.Printf("[sheetsync] WARN: receipt=%s: %v", receipt.ID, err)
		}
	}()
}

func (n *Notifier) post(receipt domain.Receipt, url string) error {
	body, err := json.Marshal(payload{Event: "sale_completed", Receipt: receipt, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until in-flight uploads finish. Used on shutdown.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
