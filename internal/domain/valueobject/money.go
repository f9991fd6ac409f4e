package valueobject

import (
	"fmt"
	"strings"

	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

const DefaultCurrency = "USD"

// MaxAmount — верхняя граница суммы в минимальных единицах (1 млрд в основной валюте).
const MaxAmount int64 = 100_000_000_000

// Money хранит сумму в минимальных единицах валюты (центах), без float.
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if amount > MaxAmount {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма превышает допустимый максимум")
	}
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: cur}, nil
}

// NormalizeCurrency приводит код валюты к ISO-виду, пустой код заменяется на USD.
func NormalizeCurrency(currency string) (string, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		return DefaultCurrency, nil
	}
	if len(cur) != 3 {
		return "", apperror.New(apperror.ErrCodeValidation, "код валюты должен состоять из трёх букв")
	}
	for _, r := range cur {
		if r < 'A' || r > 'Z' {
			return "", apperror.New(apperror.ErrCodeValidation, "код валюты должен состоять из трёх букв")
		}
	}
	return cur, nil
}

func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, m.Currency, amount/100, amount%100)
}

type Budget struct {
	Min Money
	Max Money
}

func NewBudget(min, max int64, currency string) (Budget, error) {
	if min < 0 || max < 0 {
		return Budget{}, apperror.New(apperror.ErrCodeValidation, "бюджет не может быть отрицательным")
	}
	if min > max {
		return Budget{}, apperror.New(apperror.ErrCodeValidation, "минимальный бюджет не может превышать максимальный")
	}

	minMoney, err := NewMoney(min, currency)
	if err != nil {
		return Budget{}, err
	}
	maxMoney, err := NewMoney(max, minMoney.Currency)
	if err != nil {
		return Budget{}, err
	}

	return Budget{Min: minMoney, Max: maxMoney}, nil
}

// Commission описывает комиссию площадки в базисных пунктах (1 bp = 0.01%).
type Commission struct {
	BasisPoints int64
}

func NewCommission(bps int64) (Commission, error) {
	if bps < 0 || bps > 10000 {
		return Commission{}, apperror.New(apperror.ErrCodeValidation, "комиссия должна быть в диапазоне 0..10000 bps")
	}
	return Commission{BasisPoints: bps}, nil
}

// Of возвращает размер комиссии для суммы, округление вниз в пользу исполнителя.
// Сумма делится на 10000 до умножения, поэтому результат не выходит за int64.
func (c Commission) Of(amount int64) int64 {
	if amount <= 0 || c.BasisPoints <= 0 {
		return 0
	}
	bps := min(c.BasisPoints, 10000)
	return amount/10000*bps + amount%10000*bps/10000
}

// Split делит сумму на комиссию и сумму к выплате.
func (c Commission) Split(amount int64) (commission, net int64) {
	commission = c.Of(amount)
	return commission, amount - commission
}
