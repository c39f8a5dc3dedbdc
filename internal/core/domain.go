package core

import (
	"errors"
	"fmt"
	"time"
)

// AccountClass is the result of partitioning accounts for net-worth math.
type AccountClass string

const (
	AccountCash       AccountClass = "cash"
	AccountSavings    AccountClass = "savings"
	AccountInvestment AccountClass = "investment"
	AccountProperty   AccountClass = "property"
	AccountDebt       AccountClass = "debt"
)

// Account is a budget account after normalization. Balance is signed; debt
// accounts usually carry a negative balance on the wire.
type Account struct {
	ID       string
	Name     string
	Type     string
	Balance  Money
	OnBudget bool
	Closed   bool
}

// ClassifiedAccounts is the partition produced by ClassifyAccounts.
// Closed accounts are dropped entirely.
type ClassifiedAccounts struct {
	Cash       []Account
	Savings    []Account
	Investment []Account
	Property   []Account
	Debt       []Account

	// InvestmentIDs holds the ids of all accounts classified investment;
	// the transaction filter treats their activity as tracking-only.
	InvestmentIDs map[string]bool

	// names of every open account, for synthetic transfer categories
	namesByID map[string]string
}

// AccountName returns the display name for an open account id.
func (c ClassifiedAccounts) AccountName(id string) string {
	return c.namesByID[id]
}

// Transaction is a normalized, flattened budget transaction. Split
// transactions never reach this type; the normalizer emits one Transaction
// per sub-transaction instead.
type Transaction struct {
	ID                string
	Date              time.Time
	AccountID         string
	CategoryID        string
	CategoryName      string
	CategoryGroup     string
	PayeeName         string
	Amount            Money
	TransferAccountID string
}

// CategoryInfo is the category index entry kept per category id.
type CategoryInfo struct {
	Name      string
	GroupName string
	Hidden    bool
}

// BudgetSnapshot is the canonical output of the normalizer: everything the
// analytics stages consume, in cents, flattened, indexed.
type BudgetSnapshot struct {
	Accounts     []Account
	Transactions []Transaction
	Categories   map[string]CategoryInfo
}

// Bucket is one of the four Conscious Spending Plan allocations.
type Bucket string

const (
	BucketFixedCosts  Bucket = "fixedCosts"
	BucketInvestments Bucket = "investments"
	BucketSavings     Bucket = "savings"
	BucketGuiltFree   Bucket = "guiltFree"
)

// BucketOrder is the fixed reporting order for the four buckets.
var BucketOrder = [4]Bucket{BucketFixedCosts, BucketInvestments, BucketSavings, BucketGuiltFree}

// BucketTarget is a target percentage range. HasMin/HasMax distinguish
// one-sided bounds (investments has no max).
type BucketTarget struct {
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// BucketTargets is the fixed Conscious Spending Plan table.
var BucketTargets = map[Bucket]BucketTarget{
	BucketFixedCosts:  {Min: 50, Max: 60, HasMin: true, HasMax: true},
	BucketInvestments: {Min: 10, HasMin: true},
	BucketSavings:     {Min: 5, Max: 10, HasMin: true, HasMax: true},
	BucketGuiltFree:   {Min: 20, Max: 35, HasMin: true, HasMax: true},
}

// IsTrueExpense reports whether a bucket counts toward runway, burn rate,
// and weekly comparisons. Wealth-building buckets do not.
func IsTrueExpense(b Bucket) bool {
	return b == BucketFixedCosts || b == BucketGuiltFree
}

// CSPSettings is the per-user spending-plan configuration.
type CSPSettings struct {
	// CategoryMappings maps a category id or category name to a bucket.
	// Id matches take priority over name matches.
	CategoryMappings          map[string]Bucket
	ExcludedIncomeCategories  map[string]bool
	ExcludedExpenseCategories map[string]bool
	ExcludedPayees            map[string]bool
	IncludeTrackingAccounts   bool
	UseKeywordFallback        bool
}

// DefaultCSPSettings returns the empty-everything defaults.
func DefaultCSPSettings() CSPSettings {
	return CSPSettings{
		CategoryMappings:          map[string]Bucket{},
		ExcludedIncomeCategories:  map[string]bool{},
		ExcludedExpenseCategories: map[string]bool{},
		ExcludedPayees:            map[string]bool{},
	}
}

// NewsletterSettings is the per-user delivery configuration.
type NewsletterSettings struct {
	Recipients      []string
	SavingsRateGoal float64 // annual savings-rate goal, percent
	InvestmentGoal  Money   // annual investment-contribution goal
	Timezone        string
	Enabled         bool
}

// DefaultNewsletterSettings returns the documented defaults: 25% savings
// rate goal and a 24000-unit annual investment goal.
func DefaultNewsletterSettings() NewsletterSettings {
	return NewsletterSettings{
		SavingsRateGoal: 25,
		InvestmentGoal:  FromUnits(24000),
		Timezone:        "UTC",
		Enabled:         true,
	}
}

// CategorySpend is a category name with a spend amount, for snapshots.
type CategorySpend struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Snapshot is the persisted summary of one successful run; later runs read
// it back for month-over-month, year-over-year, and YTD baselines.
type Snapshot struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	WeekEnding      time.Time          `json:"weekEnding"`
	Month           string             `json:"month"` // YYYY-MM
	Year            int                `json:"year"`
	NetWorth        Money              `json:"netWorth"`
	CashReserves    Money              `json:"cashReserves"`
	RunwayMonths    float64            `json:"runwayMonths"`
	BucketPercents  map[Bucket]float64 `json:"bucketPercents"`
	MonthlyIncome   Money              `json:"monthlyIncome"`
	MonthlyExpenses Money              `json:"monthlyExpenses"`
	YTDIncome       Money              `json:"ytdIncome"`
	YTDExpenses     Money              `json:"ytdExpenses"`
	TopCategories   []CategorySpend    `json:"topCategories"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
	RunSkipped RunStatus = "skipped"
)

// Pipeline stage names, recorded on errors and in run logs.
const (
	StageDedup     = "dedup"
	StageAuthorize = "authorize"
	StageFetch     = "fetch"
	StageAnalytics = "analytics"
	StageLLM       = "llm"
	StageSnapshot  = "snapshot"
	StageRender    = "render"
	StageDeliver   = "deliver"
	StageLog       = "log"
)

// RunLog records one pipeline invocation, whatever its outcome.
type RunLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     RunStatus `json:"status"`
	Errors     []string  `json:"errors,omitempty"`
	EmailsSent int       `json:"emailsSent"`
	AITokens   int       `json:"aiTokens"`
	SnapshotID string    `json:"snapshotId,omitempty"`
}

// Error kinds surfaced by the pipeline and its adapters.
var (
	ErrConfigMissing       = errors.New("required configuration missing")
	ErrAuthExpired         = errors.New("provider authorization expired")
	ErrProviderUnavailable = errors.New("budget provider unavailable")
	ErrIndexMissing        = errors.New("persistence index missing")
	ErrLLMUnavailable      = errors.New("llm unavailable")
	ErrDeliveryFailed      = errors.New("delivery failed")
	ErrPersistenceFailed   = errors.New("persistence failed")
	ErrInputMalformed      = errors.New("malformed provider payload")
)

// StageError tags an error with the pipeline stage that raised it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with its originating stage.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// MonthKey returns the YYYY-MM key for a date.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
