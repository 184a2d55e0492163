// Package ticket issues short-lived signed tickets that let a browser open the
// chat websocket without putting its bearer token in the URL.
package ticket

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalid = errors.New("invalid ticket")
	ErrExpired = errors.New("ticket expired")
)

type Claims struct {
	UserID  string `json:"u"`
	OrderID string `json:"o"`
	Admin   bool   `json:"a,omitempty"`
	Exp     int64  `json:"e"`
}

type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret []byte, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Codec{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns base64(json).base64(hmac) bound to one user and order.
func (c *Codec) Issue(userID, orderID string, admin bool) (string, time.Time, error) {
	exp := c.now().Add(c.ttl).UTC()
	b, err := json.Marshal(Claims{UserID: userID, OrderID: orderID, Admin: admin, Exp: exp.Unix()})
	if err != nil {
		return "", time.Time{}, err
	}
	payload := base64.RawURLEncoding.EncodeToString(b)
	return payload + "." + c.sign(payload), exp, nil
}

// Verify checks the signature, expiry and that the ticket was issued for orderID.
func (c *Codec) Verify(tok, orderID string) (Claims, error) {
	payload, sig, ok := strings.Cut(tok, ".")
	if !ok || payload == "" || !hmac.Equal([]byte(c.sign(payload)), []byte(sig)) {
		return Claims{}, ErrInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalid
	}
	var cl Claims
	if err := json.Unmarshal(raw, &cl); err != nil || cl.UserID == "" {
		return Claims{}, ErrInvalid
	}
	if cl.OrderID != orderID {
		return Claims{}, ErrInvalid
	}
	if c.now().Unix() > cl.Exp {
		return Claims{}, ErrExpired
	}
	return cl, nil
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
