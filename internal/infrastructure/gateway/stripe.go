package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	domaingw "github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
)

const defaultStripeBaseURL = "https://api.stripe.com"

// StripeConfig — параметры HTTP-клиента провайдера.
type StripeConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	// RPS ограничивает исходящие запросы; 0 — без ограничения.
	RPS float64
}

// Stripe реализует gateway.Gateway поверх Stripe Connect API.
type Stripe struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	http          *http.Client
	limiter       *rate.Limiter
	now           func() time.Time
}

func NewStripe(cfg StripeConfig) *Stripe {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultStripeBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return &Stripe{
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		http:          &http.Client{Timeout: timeout},
		limiter:       limiter,
		now:           time.Now,
	}
}

func (s *Stripe) Name() string { return "stripe" }

type stripeAccount struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
}

type stripeObject struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Stripe) CreatePayoutDestination(ctx context.Context, payee domaingw.PayeeIdentity) (string, error) {
	form := url.Values{}
	form.Set("type", "express")
	if payee.Email != "" {
		form.Set("email", payee.Email)
	}
	form.Set("capabilities[transfers][requested]", "true")
	form.Set("metadata[user_id]", payee.UserID)

	var acc stripeAccount
	if err := s.do(ctx, http.MethodPost, "/v1/accounts", form, "", &acc); err != nil {
		return "", err
	}
	return acc.ID, nil
}

func (s *Stripe) GetPayoutDestinationStatus(ctx context.Context, destinationID string) (domaingw.DestinationStatus, error) {
	var acc stripeAccount
	if err := s.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(destinationID), nil, "", &acc); err != nil {
		return domaingw.DestinationStatus{}, err
	}
	return domaingw.DestinationStatus{Ready: acc.DetailsSubmitted && acc.PayoutsEnabled}, nil
}

func (s *Stripe) CreateEscrowHold(ctx context.Context, req domaingw.HoldRequest) (domaingw.Hold, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("transfer_group", req.GroupKey)
	form.Set("automatic_payment_methods[enabled]", "true")
	setMetadata(form, req.Metadata)

	var obj stripeObject
	if err := s.do(ctx, http.MethodPost, "/v1/payment_intents", form, req.IdempotencyKey, &obj); err != nil {
		return domaingw.Hold{}, err
	}
	return domaingw.Hold{ID: obj.ID, ClientSecret: obj.ClientSecret}, nil
}

func (s *Stripe) CreateTransfer(ctx context.Context, req domaingw.TransferRequest) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("destination", req.DestinationID)
	form.Set("transfer_group", req.GroupKey)
	setMetadata(form, req.Metadata)

	var obj stripeObject
	if err := s.do(ctx, http.MethodPost, "/v1/transfers", form, req.IdempotencyKey, &obj); err != nil {
		return "", err
	}
	return obj.ID, nil
}

func (s *Stripe) CreateRefund(ctx context.Context, req domaingw.RefundRequest) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", req.HoldID)
	if req.Amount > 0 {
		form.Set("amount", strconv.FormatInt(req.Amount, 10))
	}
	setMetadata(form, req.Metadata)

	var obj stripeObject
	if err := s.do(ctx, http.MethodPost, "/v1/refunds", form, req.IdempotencyKey, &obj); err != nil {
		return "", err
	}
	return obj.ID, nil
}

func (s *Stripe) VerifyAndParseWebhook(payload []byte, signatureHeader string) (domaingw.Event, error) {
	if err := Verify(s.webhookSecret, payload, signatureHeader, DefaultSignatureTolerance, s.now()); err != nil {
		return domaingw.Event{}, err
	}
	return parseEvent(payload)
}

func setMetadata(form url.Values, meta map[string]string) {
	for k, v := range meta {
		form.Set("metadata["+k+"]", v)
	}
}

// do выполняет запрос. Сетевые ошибки, таймауты, 429 и 5xx считаются временными (ErrUnavailable),
// прочие 4xx — окончательным отказом (ErrDeclined).
func (s *Stripe) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domaingw.ErrUnavailable, err)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		// исход запроса неизвестен, повтор с тем же ключом идемпотентности безопасен
		return fmt.Errorf("%w: %s %s: %v", domaingw.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domaingw.ErrUnavailable, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: status=%d", domaingw.ErrUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		var se stripeError
		_ = json.Unmarshal(raw, &se)
		return fmt.Errorf("%w: %s %s: status=%d %s", domaingw.ErrDeclined, method, path, resp.StatusCode, se.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domaingw.ErrUnavailable, path, err)
	}
	return nil
}
