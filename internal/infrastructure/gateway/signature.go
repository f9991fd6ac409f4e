package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	domaingw "github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
)

// DefaultSignatureTolerance — допустимое расхождение времени подписи вебхука.
const DefaultSignatureTolerance = 5 * time.Minute

// SignatureHeader — заголовок с подписью вебхука в формате "t=<unix>,v1=<hex>".
const SignatureHeader = "Stripe-Signature"

// Sign вычисляет подпись полезной нагрузки: HMAC-SHA256 от "<timestamp>.<payload>".
func Sign(secret string, payload []byte, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + ",v1=" + computeMAC(secret, unix, payload)
}

func computeMAC(secret, unix string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет заголовок подписи. Допускается несколько v1 при ротации секрета.
func Verify(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) error {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(header) == "" {
		return domaingw.ErrInvalidSignature
	}

	var unix string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			unix = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if unix == "" || len(candidates) == 0 {
		return domaingw.ErrInvalidSignature
	}

	sec, err := strconv.ParseInt(unix, 10, 64)
	if err != nil {
		return domaingw.ErrInvalidSignature
	}
	if tolerance > 0 {
		skew := now.Sub(time.Unix(sec, 0))
		if skew > tolerance || skew < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", domaingw.ErrInvalidSignature)
		}
	}

	expected, _ := hex.DecodeString(computeMAC(secret, unix, payload))
	for _, c := range candidates {
		decoded, err := hex.DecodeString(c)
		if err != nil || len(decoded) != len(expected) {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return domaingw.ErrInvalidSignature
}
