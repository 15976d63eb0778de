package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const defaultSignatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks the gateway's `t=<unix>,v1=<hex>` HMAC
// header over "<t>.<rawBody>". Multiple v1 entries are accepted to allow
// secret rotation.
func VerifyWebhookSignature(payload []byte, signatureHeader, secret string, receivedAt time.Time) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	timestamp, signatures := parseSignatureHeader(sig)
	if timestamp == "" || len(signatures) == 0 {
		return false
	}
	timestampUnix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || timestampUnix <= 0 {
		return false
	}

	skew := receivedAt.UTC().Unix() - timestampUnix
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > defaultSignatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sigHex := range signatures {
		decoded, err := hex.DecodeString(sigHex)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return true
		}
	}
	return false
}

func parseSignatureHeader(header string) (string, []string) {
	var t string
	v1 := make([]string, 0, 2)
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "t":
			if t == "" {
				t = strings.TrimSpace(kv[1])
			}
		case "v1":
			if v := strings.TrimSpace(kv[1]); v != "" {
				v1 = append(v1, v)
			}
		}
	}
	return t, v1
}
