package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	domaingw "github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
)

// Операции песочницы, на которые можно навесить сбой.
type Op string

const (
	OpCreateDestination Op = "create_destination"
	OpDestinationStatus Op = "destination_status"
	OpCreateHold        Op = "create_hold"
	OpCreateTransfer    Op = "create_transfer"
	OpCreateRefund      Op = "create_refund"
)

// Fault описывает сбой одного вызова. При AfterEffect операция успевает выполниться,
// но вызывающий получает ошибку, как при таймауте после записи у провайдера.
type Fault struct {
	Err         error
	AfterEffect bool
}

// SandboxTransfer — выполненный перевод.
type SandboxTransfer struct {
	ID            string
	Amount        int64
	Currency      string
	DestinationID string
	GroupKey      string
}

// Sandbox — провайдер в памяти для dev-режима и тестов: идемпотентность по ключу,
// управляемая готовность счетов и внедрение сбоев.
type Sandbox struct {
	mu           sync.Mutex
	secret       string
	now          func() time.Time
	destinations map[string]bool
	holds        map[string]domaingw.Hold
	holdAmounts  map[string]int64
	transfers    map[string]SandboxTransfer
	refunds      map[string]string
	faults       map[Op][]Fault
	calls        map[Op]int
	autoReady    bool
}

func NewSandbox(webhookSecret string) *Sandbox {
	return &Sandbox{
		secret:       webhookSecret,
		now:          time.Now,
		destinations: make(map[string]bool),
		holds:        make(map[string]domaingw.Hold),
		holdAmounts:  make(map[string]int64),
		transfers:    make(map[string]SandboxTransfer),
		refunds:      make(map[string]string),
		faults:       make(map[Op][]Fault),
		calls:        make(map[Op]int),
	}
}

func (s *Sandbox) Name() string { return "sandbox" }

// WithAutoReady делает новые счета сразу готовыми к выплатам.
func (s *Sandbox) WithAutoReady() *Sandbox {
	s.mu.Lock()
	s.autoReady = true
	s.mu.Unlock()
	return s
}

// InjectFault ставит сбой в очередь для следующего вызова операции.
func (s *Sandbox) InjectFault(op Op, fault Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], fault)
}

// SetDestinationReady имитирует завершение онбординга у провайдера.
func (s *Sandbox) SetDestinationReady(destinationID string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations[destinationID] = ready
}

// Calls возвращает число вызовов операции, включая неудачные.
func (s *Sandbox) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Transfers возвращает выполненные переводы (по одному на ключ идемпотентности).
func (s *Sandbox) Transfers() []SandboxTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SandboxTransfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		out = append(out, t)
	}
	return out
}

func (s *Sandbox) takeFault(op Op) (Fault, bool) {
	s.calls[op]++
	queue := s.faults[op]
	if len(queue) == 0 {
		return Fault{}, false
	}
	s.faults[op] = queue[1:]
	return queue[0], true
}

func (s *Sandbox) CreatePayoutDestination(ctx context.Context, payee domaingw.PayeeIdentity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domaingw.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fault, faulty := s.takeFault(OpCreateDestination)
	if faulty && !fault.AfterEffect {
		return "", fault.Err
	}
	id := "acct_" + shortID()
	s.destinations[id] = s.autoReady
	if faulty {
		return "", fault.Err
	}
	return id, nil
}

func (s *Sandbox) GetPayoutDestinationStatus(ctx context.Context, destinationID string) (domaingw.DestinationStatus, error) {
	if err := ctx.Err(); err != nil {
		return domaingw.DestinationStatus{}, fmt.Errorf("%w: %v", domaingw.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if fault, ok := s.takeFault(OpDestinationStatus); ok {
		return domaingw.DestinationStatus{}, fault.Err
	}
	ready, ok := s.destinations[destinationID]
	if !ok {
		return domaingw.DestinationStatus{}, fmt.Errorf("%w: unknown destination %s", domaingw.ErrDeclined, destinationID)
	}
	return domaingw.DestinationStatus{Ready: ready}, nil
}

func (s *Sandbox) CreateEscrowHold(ctx context.Context, req domaingw.HoldRequest) (domaingw.Hold, error) {
	if err := ctx.Err(); err != nil {
		return domaingw.Hold{}, fmt.Errorf("%w: %v", domaingw.ErrUnavailable, err)
	}
	if req.Amount <= 0 {
		return domaingw.Hold{}, fmt.Errorf("%w: amount must be positive", domaingw.ErrDeclined)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fault, faulty := s.takeFault(OpCreateHold)
	if faulty && !fault.AfterEffect {
		return domaingw.Hold{}, fault.Err
	}
	hold, ok := s.holds[req.IdempotencyKey]
	if !ok {
		id := "pi_" + shortID()
		hold = domaingw.Hold{ID: id, ClientSecret: id + "_secret_" + shortID()}
		s.holds[req.IdempotencyKey] = hold
		s.holdAmounts[hold.ID] = req.Amount
	}
	if faulty {
		return domaingw.Hold{}, fault.Err
	}
	return hold, nil
}

func (s *Sandbox) CreateTransfer(ctx context.Context, req domaingw.TransferRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domaingw.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fault, faulty := s.takeFault(OpCreateTransfer)
	if faulty && !fault.AfterEffect {
		return "", fault.Err
	}
	if _, ok := s.destinations[req.DestinationID]; !ok {
		return "", fmt.Errorf("%w: unknown destination %s", domaingw.ErrDeclined, req.DestinationID)
	}
	tr, ok := s.transfers[req.IdempotencyKey]
	if !ok {
		tr = SandboxTransfer{
			ID:            "tr_" + shortID(),
			Amount:        req.Amount,
			Currency:      req.Currency,
			DestinationID: req.DestinationID,
			GroupKey:      req.GroupKey,
		}
		s.transfers[req.IdempotencyKey] = tr
	}
	if faulty {
		return "", fault.Err
	}
	return tr.ID, nil
}

func (s *Sandbox) CreateRefund(ctx context.Context, req domaingw.RefundRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domaingw.ErrUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fault, faulty := s.takeFault(OpCreateRefund)
	if faulty && !fault.AfterEffect {
		return "", fault.Err
	}
	if _, ok := s.holdAmounts[req.HoldID]; !ok {
		return "", fmt.Errorf("%w: unknown hold %s", domaingw.ErrDeclined, req.HoldID)
	}
	id, ok := s.refunds[req.IdempotencyKey]
	if !ok {
		id = "re_" + shortID()
		s.refunds[req.IdempotencyKey] = id
	}
	if faulty {
		return "", fault.Err
	}
	return id, nil
}

func (s *Sandbox) VerifyAndParseWebhook(payload []byte, signatureHeader string) (domaingw.Event, error) {
	if err := Verify(s.secret, payload, signatureHeader, DefaultSignatureTolerance, s.now()); err != nil {
		return domaingw.Event{}, err
	}
	return parseEvent(payload)
}

// SandboxEvent — параметры события, которое песочница подписывает и отдаёт как вебхук.
type SandboxEvent struct {
	ID       string
	Type     string
	ObjectID string
	HoldID   string
	Ready    bool
	Reason   string
	Metadata map[string]string
}

// SignedEvent возвращает полезную нагрузку и заголовок подписи, как их прислал бы провайдер.
func (s *Sandbox) SignedEvent(evt SandboxEvent) ([]byte, string, error) {
	if evt.ID == "" {
		evt.ID = "evt_" + shortID()
	}
	obj := eventObject{ID: evt.ObjectID, PaymentIntent: evt.HoldID, Metadata: evt.Metadata}
	switch evt.Type {
	case domaingw.EventAccountUpdated:
		obj.DetailsSubmitted = evt.Ready
		obj.PayoutsEnabled = evt.Ready
		obj.ChargesEnabled = evt.Ready
	case domaingw.EventEscrowHoldFailed:
		if evt.Reason != "" {
			obj.LastPaymentError = &paymentError{Message: evt.Reason}
		}
	}
	now := s.now()
	payload, err := buildEvent(evt.ID, evt.Type, obj, now)
	if err != nil {
		return nil, "", err
	}
	return payload, Sign(s.secret, payload, now), nil
}

func shortID() string {
	return uuid.NewString()[:8] + uuid.NewString()[:8]
}
