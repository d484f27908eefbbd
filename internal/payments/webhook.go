package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"reflexion/internal/models"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac>".
const SignatureHeader = "X-Signature"

// DefaultTolerance bounds how old a signed delivery may be.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrStaleSignature   = errors.New("webhook timestamp outside tolerance")
)

// Sign computes the v1 signature of payload at timestamp ts.
func Sign(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureValue formats a header value for payload, for tests and tools.
func SignatureValue(secret string, ts time.Time, payload []byte) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, Sign(secret, unix, payload))
}

// VerifySignature checks header against payload. Any v1 entry may match so
// that secrets can be rotated.
func VerifySignature(secret string, payload []byte, header string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return errors.New("webhook secret not configured")
	}
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrBadSignature
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return ErrMissingSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return ErrStaleSignature
	}

	expected := Sign(secret, ts, payload)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrBadSignature
}

// Event is a subscription notification from the provider.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID                string `json:"id"`
		ExternalReference string `json:"external_reference"`
		Status            string `json:"status"`
	} `json:"data"`
}

// ParseEvent decodes and sanity-checks a webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, models.NewValidationError("invalid webhook payload")
	}
	if ev.ID == "" {
		return nil, models.NewValidationError("webhook event id is required")
	}
	return &ev, nil
}

// MapStatus translates a provider subscription status. ok is false for
// statuses that do not change the plan.
func MapStatus(providerStatus string) (status models.SubscriptionStatus, ok bool) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "authorized":
		return models.SubscriptionActive, true
	case "pending":
		return models.SubscriptionTrial, true
	case "paused", "cancelled", "canceled":
		return models.SubscriptionInactive, true
	default:
		return "", false
	}
}
