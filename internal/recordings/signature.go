package recordings

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerID        = "webhook-id"
	headerTimestamp = "webhook-timestamp"
	headerSignature = "webhook-signature"

	// signatureTolerance is how far a webhook timestamp may drift from now.
	signatureTolerance = 5 * time.Minute
)

// ErrBadSignature is returned for webhooks that fail verification.
var ErrBadSignature = errors.New("invalid webhook signature")

// Verifier checks Svix-style webhook signatures: base64(HMAC-SHA256(secret, id.timestamp.body))
// sent as "v1,<sig>" entries separated by spaces.
type Verifier struct {
	key []byte
	now func() time.Time
}

// NewVerifier builds a verifier from a "whsec_"-prefixed base64 secret. A secret without the
// prefix is used as raw key bytes.
func NewVerifier(secret string) (*Verifier, error) {
	key := []byte(secret)
	if strings.HasPrefix(secret, "whsec_") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
		if err != nil {
			return nil, fmt.Errorf("decode webhook secret: %w", err)
		}
		key = decoded
	}
	if len(key) == 0 {
		return nil, errors.New("empty webhook secret")
	}
	return &Verifier{key: key, now: time.Now}, nil
}

// Sign returns the "v1,<sig>" header value for the given message.
func (v *Verifier) Sign(id string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%d.", id, ts.Unix())
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature headers against body.
func (v *Verifier) Verify(h http.Header, body []byte) error {
	id, tsRaw, sigs := h.Get(headerID), h.Get(headerTimestamp), h.Get(headerSignature)
	if id == "" || tsRaw == "" || sigs == "" {
		return fmt.Errorf("%w: missing headers", ErrBadSignature)
	}
	sec, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrBadSignature)
	}
	ts := time.Unix(sec, 0)
	if d := v.now().Sub(ts); d > signatureTolerance || d < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
	}
	want := v.Sign(id, ts, body)
	for _, s := range strings.Fields(sigs) {
		if hmac.Equal([]byte(s), []byte(want)) {
			return nil
		}
	}
	return ErrBadSignature
}
