package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Cash        PaymentMethod = "Cash"
	CreditCard  PaymentMethod = "Credit Card"
	BankAccount PaymentMethod = "Bank Account"
)

type (
	PaymentMethod string

	// Expense is a single recorded transaction owned by one user.
	Expense struct {
		ID            string          `json:"id"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Category      string          `json:"category"`
		PaymentMethod PaymentMethod   `json:"paymentMethod"`
		Date          time.Time       `json:"date"`
		Note          string          `json:"note,omitempty"`
	}

	// ExpenseInput carries every caller-supplied field of an Expense.
	// Update replaces all of them, so fields to keep must be re-supplied.
	ExpenseInput struct {
		Description   string
		Amount        decimal.Decimal
		Category      string
		PaymentMethod PaymentMethod
		Date          time.Time
		Note          string
	}
)

// DefaultCategories is the category set offered by clients. Expenses are not
// validated against it.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Shopping",
	"Bills",
	"Entertainment",
	"Health",
	"Other",
}

var (
	ErrEmptyDescription     = errors.New("empty description")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidDate          = errors.New("invalid date")
	ErrMissingID            = errors.New("missing expense id")
)

// PaymentMethods returns the closed set of payment methods in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{Cash, CreditCard, BankAccount}
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case Cash, CreditCard, BankAccount:
		return true
	default:
		return false
	}
}

func (p PaymentMethod) String() string {
	return string(p)
}

// ParsePaymentMethod accepts the wire strings ("Credit Card") as well as
// compact spellings ("creditcard", "credit-card") in any case.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(norm)
	switch norm {
	case "cash":
		return Cash, nil
	case "creditcard", "card":
		return CreditCard, nil
	case "bankaccount", "bank":
		return BankAccount, nil
	}
	return "", ValidationError(fmt.Sprintf("unknown payment method %q", s), ErrInvalidPaymentMethod)
}

// NewExpense validates in and returns an Expense with a fresh id.
func NewExpense(in ExpenseInput) (Expense, error) {
	e := in.apply(uuid.NewString())
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Update returns a copy of existing with every field but the id replaced by patch.
func Update(existing Expense, patch ExpenseInput) (Expense, error) {
	if existing.ID == "" {
		return Expense{}, ValidationError("cannot update an expense without id", ErrMissingID)
	}
	e := patch.apply(existing.ID)
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Input returns the editable fields of e, handy as the base of an update.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Description:   e.Description,
		Amount:        e.Amount,
		Category:      e.Category,
		PaymentMethod: e.PaymentMethod,
		Date:          e.Date,
		Note:          e.Note,
	}
}

func (in ExpenseInput) apply(id string) Expense {
	return Expense{
		ID:            id,
		Description:   strings.TrimSpace(in.Description),
		Amount:        in.Amount,
		Category:      strings.TrimSpace(in.Category),
		PaymentMethod: in.PaymentMethod,
		Date:          in.Date,
		Note:          strings.TrimSpace(in.Note),
	}
}

func (e Expense) Validate() error {
	if e.ID == "" {
		return ValidationError("expense id is required", ErrMissingID)
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ValidationError("description is required", ErrEmptyDescription)
	}
	if e.Amount.IsNegative() {
		return ValidationError("amount cannot be negative", ErrNegativeAmount)
	}
	if !e.PaymentMethod.Valid() {
		return ValidationError(fmt.Sprintf("unknown payment method %q", e.PaymentMethod), ErrInvalidPaymentMethod)
	}
	if e.Date.IsZero() {
		return ValidationError("date is required", ErrInvalidDate)
	}
	return nil
}
