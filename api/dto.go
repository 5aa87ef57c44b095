/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  ledger's domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through the shared validator before touching the engine. Business
  rules (multiples, caps, capacity) stay in the ledger package - the
  tags only reject malformed input early.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splane2030/SplaneDev/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// EnrollRequest is the request to enroll a new member.
type EnrollRequest struct {
	LastName   string `json:"last_name" validate:"required"`
	MiddleName string `json:"middle_name"`
	FirstName  string `json:"first_name"`
	Gender     string `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate  string `json:"birth_date"`
	BirthPlace string `json:"birth_place"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`

	Deputy        string `json:"deputy"`
	DeputyContact string `json:"deputy_contact"`

	Kind string `json:"kind" validate:"required,oneof=fixed mixed locked"`

	// Fixed accounts
	UnitAmount decimal.Decimal `json:"unit_amount"`
	StartDate  string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`

	// Locked accounts
	TargetAmount        decimal.Decimal `json:"target_amount"`
	WithdrawalPercent   int             `json:"withdrawal_percent" validate:"omitempty,min=1,max=100"`
	WithdrawalFrequency string          `json:"withdrawal_frequency"`

	Operator string `json:"operator" validate:"required"`
}

// DepositRequest is the request to deposit onto an account.
type DepositRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Operator      string          `json:"operator" validate:"required"`
	PaymentMethod string          `json:"payment_method"`
}

// WithdrawRequest is the request to withdraw from an account.
type WithdrawRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Mode     string          `json:"mode" validate:"required,oneof=partial global"`
	Payout   string          `json:"payout" validate:"omitempty,oneof=fixed mixed locked"`
	Operator string          `json:"operator" validate:"required"`
}

// ResetRequest authorizes the destructive fixed-account reset.
type ResetRequest struct {
	Operator string `json:"operator" validate:"required"`
}

// CleanupRequest identifies a duplicate-deposit group and how to treat it.
type CleanupRequest struct {
	ClientNumber string          `json:"client_number" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	RecordedAt   time.Time       `json:"recorded_at" validate:"required"`
	Mode         string          `json:"mode" validate:"required,oneof=keep-one remove-all"`
	Operator     string          `json:"operator" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AccountDTO is an account with its kind extension.
type AccountDTO struct {
	ClientNumber    string          `json:"client_number"`
	CardNumber      string          `json:"card_number"`
	LastName        string          `json:"last_name"`
	MiddleName      string          `json:"middle_name,omitempty"`
	FirstName       string          `json:"first_name,omitempty"`
	Kind            string          `json:"kind"`
	Balance         decimal.Decimal `json:"balance"`
	Status          string          `json:"status"`
	EnrolledAt      time.Time       `json:"enrolled_at"`
	LastOperationAt *time.Time      `json:"last_operation_at,omitempty"`

	Fixed  *FixedPlanDTO  `json:"fixed_plan,omitempty"`
	Locked *LockedPlanDTO `json:"locked_plan,omitempty"`
}

type FixedPlanDTO struct {
	UnitAmount decimal.Decimal `json:"unit_amount"`
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
}

type LockedPlanDTO struct {
	TargetAmount        decimal.Decimal `json:"target_amount"`
	WithdrawalPercent   int             `json:"withdrawal_percent"`
	WithdrawalFrequency string          `json:"withdrawal_frequency,omitempty"`
}

// BookletPageDTO is one page of a fixed account's booklet.
type BookletPageDTO struct {
	Page        int `json:"page"`
	FilledCases int `json:"filled_cases"`
}

// DepositDTO mirrors a committed deposit record.
type DepositDTO struct {
	ClientNumber  string          `json:"client_number"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference"`
	HolderName    string          `json:"holder_name,omitempty"`
	Operator      string          `json:"operator"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// WithdrawalDTO mirrors a committed withdrawal record.
type WithdrawalDTO struct {
	ClientNumber string          `json:"client_number"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	Commission   decimal.Decimal `json:"commission"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	Reference    string          `json:"reference"`
	Operator     string          `json:"operator"`
	Status       string          `json:"status"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// OperationDTO is a merged history entry.
type OperationDTO struct {
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference"`
	Operator   string          `json:"operator"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// AuditEntryDTO is one audit-journal row.
type AuditEntryDTO struct {
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DuplicateGroupDTO is one group of suspected duplicate deposits.
type DuplicateGroupDTO struct {
	ClientNumber string          `json:"client_number"`
	Amount       decimal.Decimal `json:"amount"`
	RecordedAt   time.Time       `json:"recorded_at"`
	Count        int             `json:"count"`
}

// ErrorResponse is the uniform error body. Boundary values computed by the
// rule engines (maximum withdrawable amount, caps, leftover cases) ride
// along so the form layer can show the operator the corrected figure.
type ErrorResponse struct {
	Error         string            `json:"error"`
	Details       map[string]string `json:"details,omitempty"`
	Balance       *decimal.Decimal  `json:"balance,omitempty"`
	Limit         *decimal.Decimal  `json:"limit,omitempty"`
	MaxAmount     *decimal.Decimal  `json:"max_amount,omitempty"`
	LeftoverCases *int              `json:"leftover_cases,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(v *ledger.AccountView) AccountDTO {
	dto := AccountDTO{
		ClientNumber:    v.Account.ClientNumber,
		CardNumber:      v.Account.CardNumber,
		LastName:        v.Account.LastName,
		MiddleName:      v.Account.MiddleName,
		FirstName:       v.Account.FirstName,
		Kind:            string(v.Account.Kind),
		Balance:         v.Account.Balance,
		Status:          string(v.Account.Status),
		EnrolledAt:      v.Account.EnrolledAt,
		LastOperationAt: v.Account.LastOperationAt,
	}
	if v.Fixed != nil {
		dto.Fixed = &FixedPlanDTO{
			UnitAmount: v.Fixed.UnitAmount,
			StartDate:  v.Fixed.StartDate.Format("2006-01-02"),
			EndDate:    v.Fixed.EndDate.Format("2006-01-02"),
		}
	}
	if v.Locked != nil {
		dto.Locked = &LockedPlanDTO{
			TargetAmount:        v.Locked.TargetAmount,
			WithdrawalPercent:   v.Locked.WithdrawalPercent,
			WithdrawalFrequency: v.Locked.WithdrawalFrequency,
		}
	}
	return dto
}

func toDepositDTO(d *ledger.DepositRecord) DepositDTO {
	return DepositDTO{
		ClientNumber:  d.AccountRef,
		Amount:        d.Amount,
		Reference:     d.Reference,
		HolderName:    d.HolderName,
		Operator:      d.Operator,
		PaymentMethod: d.PaymentMethod,
		RecordedAt:    d.RecordedAt,
	}
}

func toWithdrawalDTO(w *ledger.WithdrawalRecord) WithdrawalDTO {
	return WithdrawalDTO{
		ClientNumber: w.AccountRef,
		GrossAmount:  w.GrossAmount,
		Commission:   w.Commission,
		NetAmount:    w.NetAmount,
		Reference:    w.Reference,
		Operator:     w.Operator,
		Status:       string(w.Status),
		RecordedAt:   w.RecordedAt,
	}
}
