package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	MockSignatureHeader = "X-Mock-Signature"
	mockTolerance       = 5 * time.Minute
)

// MockProvider simulates a hosted checkout. The "hosted page" lives at
// <baseURL>/mock-checkout/<session ref> and is served by this application.
type MockProvider struct {
	secret  []byte
	baseURL string
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]MockSession
}

type MockSession struct {
	Ref         string
	OrderID     string
	AmountCents int
	Currency    string
	SuccessURL  string
	CancelURL   string
	ExpiresAt   time.Time
}

func NewMockProvider(secret, baseURL string) *MockProvider {
	return &MockProvider{
		secret:   []byte(secret),
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		sessions: make(map[string]MockSession),
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (CheckoutSessionResponse, error) {
	if req.AmountCents <= 0 {
		return CheckoutSessionResponse{}, fmt.Errorf("mock: invalid amount %d", req.AmountCents)
	}
	ref := "cs_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	exp := req.ExpiresAt
	if exp.IsZero() {
		exp = m.now().Add(30 * time.Minute)
	}

	m.mu.Lock()
	m.sessions[ref] = MockSession{
		Ref:         ref,
		OrderID:     req.OrderID,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		ExpiresAt:   exp,
	}
	m.mu.Unlock()

	return CheckoutSessionResponse{SessionRef: ref, URL: m.baseURL + "/mock-checkout/" + ref, ExpiresAt: exp}, nil
}

func (m *MockProvider) RefundPayment(_ context.Context, req RefundRequest) (RefundResponse, error) {
	if req.PaymentRef == "" {
		return RefundResponse{Status: StatusFailed}, fmt.Errorf("mock: missing payment ref")
	}
	return RefundResponse{ProviderRef: "re_mock_" + strings.ReplaceAll(uuid.NewString(), "-", ""), Status: StatusSucceeded}, nil
}

func (m *MockProvider) Session(ref string) (MockSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ref]
	return s, ok
}

// Complete simulates the customer finishing the hosted page. outcome is one of
// success, fail or expire. It returns the signed webhook the provider would send.
func (m *MockProvider) Complete(ref, outcome string) (MockSession, []byte, http.Header, error) {
	s, ok := m.Session(ref)
	if !ok {
		return MockSession{}, nil, nil, ErrUnknownSession
	}

	var typ string
	data := map[string]any{
		"session_ref":  s.Ref,
		"order_id":     s.OrderID,
		"amount_cents": s.AmountCents,
		"currency":     s.Currency,
	}
	switch outcome {
	case "success", "":
		typ = EventPaymentSucceeded
		data["payment_ref"] = "pi_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	case "fail":
		typ = EventPaymentFailed
	case "expire":
		typ = EventCheckoutExpired
	default:
		return MockSession{}, nil, nil, fmt.Errorf("mock: unknown outcome %q", outcome)
	}

	body, err := json.Marshal(map[string]any{
		"id":   "evt_mock_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		"type": typ,
		"data": data,
	})
	if err != nil {
		return MockSession{}, nil, nil, err
	}

	h := http.Header{}
	t := m.now().Unix()
	h.Set(MockSignatureHeader, fmt.Sprintf("t=%d,v1=%s", t, MockSignature(m.secret, t, body)))
	h.Set("Content-Type", "application/json")

	if typ != EventPaymentFailed {
		m.mu.Lock()
		delete(m.sessions, ref)
		m.mu.Unlock()
	}
	return s, body, h, nil
}

func (m *MockProvider) VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error) {
	t, sig, err := parseMockSignature(headers.Get(MockSignatureHeader))
	if err != nil {
		return WebhookEvent{}, err
	}
	if d := m.now().Sub(time.Unix(t, 0)); d > mockTolerance || d < -mockTolerance {
		return WebhookEvent{}, ErrInvalidSignature
	}
	want := MockSignature(m.secret, t, body)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return WebhookEvent{}, ErrInvalidSignature
	}

	if !gjson.ValidBytes(body) {
		return WebhookEvent{}, ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)
	ev := WebhookEvent{
		EventID:     root.Get("id").String(),
		Type:        root.Get("type").String(),
		SessionRef:  root.Get("data.session_ref").String(),
		PaymentRef:  root.Get("data.payment_ref").String(),
		RefundRef:   root.Get("data.refund_ref").String(),
		AmountCents: int(root.Get("data.amount_cents").Int()),
		Currency:    root.Get("data.currency").String(),
	}
	if ev.EventID == "" || ev.Type == "" {
		return WebhookEvent{}, ErrInvalidPayload
	}
	return ev, nil
}

// MockSignature is hex(HMAC-SHA256(secret, "<t>.<body>")).
func MockSignature(secret []byte, t int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(t, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseMockSignature(h string) (int64, string, error) {
	var (
		t   int64
		sig string
	)
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", ErrInvalidSignature
			}
			t = n
		case "v1":
			sig = v
		}
	}
	if t == 0 || sig == "" {
		return 0, "", ErrInvalidSignature
	}
	return t, sig, nil
}
