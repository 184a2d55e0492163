// Command mockwebhook sends a signed mock-provider webhook to a running
// server, for replaying payment outcomes by hand.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"shirly.shop/app/internal/modules/payments"
)

type webhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		SessionRef  string `json:"session_ref,omitempty"`
		OrderID     string `json:"order_id,omitempty"`
		PaymentRef  string `json:"payment_ref,omitempty"`
		RefundRef   string `json:"refund_ref,omitempty"`
		AmountCents int    `json:"amount_cents"`
		Currency    string `json:"currency"`
	} `json:"data"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/mock", "webhook URL")
	secret := flag.String("secret", os.Getenv("MOCK_WEBHOOK_SECRET"), "webhook secret")
	eventID := flag.String("event-id", "evt_"+shortID(), "event id; reuse one to test deduplication")
	eventType := flag.String("type", payments.EventPaymentSucceeded, "event type")
	sessionRef := flag.String("session-ref", "", "checkout session ref (payment events)")
	orderID := flag.String("order-id", "", "order id")
	paymentRef := flag.String("payment-ref", "pi_mock_"+shortID(), "payment ref")
	refundRef := flag.String("refund-ref", "", "refund ref (refund events)")
	amount := flag.Int("amount", 5000, "amount in cents")
	currency := flag.String("currency", "USD", "currency")
	dryRun := flag.Bool("dry-run", false, "print the request without sending it")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "secret not provided and MOCK_WEBHOOK_SECRET not set")
		os.Exit(1)
	}

	p := webhookPayload{ID: *eventID, Type: *eventType}
	p.Data.SessionRef = *sessionRef
	p.Data.OrderID = *orderID
	p.Data.PaymentRef = *paymentRef
	p.Data.RefundRef = *refundRef
	p.Data.AmountCents = *amount
	p.Data.Currency = *currency

	body, err := json.Marshal(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal payload: %v\n", err)
		os.Exit(1)
	}

	t := time.Now().Unix()
	sigHeader := fmt.Sprintf("t=%d,v1=%s", t, payments.MockSignature([]byte(*secret), t, body))
	fmt.Printf("%s: %s\n", payments.MockSignatureHeader, sigHeader)
	fmt.Printf("Body: %s\n", body)
	if *dryRun {
		return
	}

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "create request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payments.MockSignatureHeader, sigHeader)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\nResponse: %s\n", resp.StatusCode, respBody)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
