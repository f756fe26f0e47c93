package core

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const DateLayout = "2006-01-02"

// Text limits count characters, not bytes.
const (
	MaxDescriptionLen    = 200
	MaxIdempotencyKeyLen = 128
	MaxNameLen           = 120
	MaxMemberIDLen       = 64
)

type (
	TransactionKind string
	Role            string
	Priority        string
	ProjectStatus   string
)

const (
	KindDeposit TransactionKind = "deposit"
	KindDue     TransactionKind = "due"
	KindProfit  TransactionKind = "profit"
)

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

const (
	StatusRunning    ProjectStatus = "running"
	StatusProfitable ProjectStatus = "profitable"
	StatusExpanding  ProjectStatus = "expanding"
)

// Date is a calendar day in UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC date.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses YYYY-MM-DD. RFC 3339 timestamps are accepted and truncated to the day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, Invalid(fmt.Sprintf("invalid date %q", s))
	}
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return Invalid("date cannot be zero")
	}
	if y := d.Year(); y < 1900 || y > 9999 {
		return Invalid(fmt.Sprintf("date year %d out of range", y))
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return Invalid("date must be a string")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindDue, KindProfit:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusProfitable, StatusExpanding:
		return true
	}
	return false
}

// Member is a cooperative member and the owner of ledger entries.
type Member struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	JoiningDate    Date   `json:"joiningDate"`
	MonthlySavings Money  `json:"monthlySavings"`
	TotalSaved     Money  `json:"totalSaved"`
	TotalDue       Money  `json:"totalDue"`
	ProfitShare    Money  `json:"profitShare"`
	Avatar         string `json:"avatar"`
	Role           Role   `json:"role"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID             string          `json:"id"`
	MemberID       string          `json:"memberId"`
	Amount         Money           `json:"amount"`
	Kind           TransactionKind `json:"type"`
	OccurredOn     Date            `json:"date"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Notice struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Date     Date     `json:"date"`
	Author   string   `json:"author"`
	Priority Priority `json:"priority"`
}

// ProjectUpdate describes one of the cooperative's investments.
type ProjectUpdate struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	InvestmentAmount Money         `json:"investmentAmount"`
	Status           ProjectStatus `json:"status"`
	ImageURL         string        `json:"imageUrl"`
}

func (m Member) Validate() error {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return Invalid("member id is required")
	}
	if utf8.RuneCountInString(id) > MaxMemberIDLen {
		return Invalid("member id too long")
	}
	if strings.TrimSpace(m.Name) == "" {
		return Invalid("member name is required")
	}
	if utf8.RuneCountInString(m.Name) > MaxNameLen {
		return Invalid("member name too long")
	}
	if m.Email != "" {
		if _, err := mail.ParseAddress(m.Email); err != nil {
			return Invalid(fmt.Sprintf("invalid email %q", m.Email))
		}
	}
	if m.MonthlySavings.IsNegative() {
		return Invalid("monthly savings cannot be negative")
	}
	if !m.Role.Valid() {
		return Invalid(fmt.Sprintf("invalid role %q", m.Role))
	}
	if err := m.JoiningDate.Validate(); err != nil {
		return err
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.MemberID) == "" {
		return Invalid("member id is required")
	}
	if !t.Kind.Valid() {
		return invalid(fmt.Errorf("%w %q", ErrInvalidKind, t.Kind))
	}
	if strings.TrimSpace(t.Description) == "" {
		return invalid(ErrEmptyDescription)
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLen {
		return Invalid("description too long (max 200 characters)")
	}
	if len(t.IdempotencyKey) > MaxIdempotencyKeyLen {
		return Invalid("idempotency key too long")
	}
	return t.OccurredOn.Validate()
}

// SameIntent reports whether two entries describe the same money movement.
// Used to tell a retry apart from a reused idempotency key.
func (t Transaction) SameIntent(o Transaction) bool {
	return t.MemberID == o.MemberID && t.Kind == o.Kind && t.Amount == o.Amount
}

func (n Notice) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return Invalid("notice title is required")
	}
	if strings.TrimSpace(n.Content) == "" {
		return Invalid("notice content is required")
	}
	if !n.Priority.Valid() {
		return Invalid(fmt.Sprintf("invalid priority %q", n.Priority))
	}
	return n.Date.Validate()
}

func (p ProjectUpdate) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return Invalid("project title is required")
	}
	if p.InvestmentAmount.IsNegative() {
		return Invalid("investment amount cannot be negative")
	}
	if !p.Status.Valid() {
		return Invalid(fmt.Sprintf("invalid status %q", p.Status))
	}
	if p.ImageURL != "" {
		if u, err := url.Parse(p.ImageURL); err != nil || u.Scheme == "" {
			return Invalid(fmt.Sprintf("invalid image url %q", p.ImageURL))
		}
	}
	return nil
}

type LedgerEventType string

const (
	EventTransactionRecorded LedgerEventType = "transaction.recorded"
	EventMemberUpdated       LedgerEventType = "member.updated"
	EventMemberDeleted       LedgerEventType = "member.deleted"
)

// LedgerEvent announces a committed change to a member's ledger.
type LedgerEvent struct {
	Type          LedgerEventType `json:"type"`
	MemberID      string          `json:"memberId"`
	TransactionID string          `json:"transactionId,omitempty"`
	Kind          TransactionKind `json:"kind,omitempty"`
	AmountCents   int64           `json:"amountCents,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// MemberPatch is a partial member update. Nil fields are left untouched.
// Setting TotalSaved, TotalDue or ProfitShare is an admin override of the aggregates.
type MemberPatch struct {
	Name           *string `json:"name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Avatar         *string `json:"avatar,omitempty"`
	Role           *Role   `json:"role,omitempty"`
	MonthlySavings *Money  `json:"monthlySavings,omitempty"`
	TotalSaved     *Money  `json:"totalSaved,omitempty"`
	TotalDue       *Money  `json:"totalDue,omitempty"`
	ProfitShare    *Money  `json:"profitShare,omitempty"`
}

func (p MemberPatch) IsEmpty() bool {
	return p == MemberPatch{}
}

// TouchesAggregates reports whether the patch overrides any ledger aggregate.
func (p MemberPatch) TouchesAggregates() bool {
	return p.TotalSaved != nil || p.TotalDue != nil || p.ProfitShare != nil
}

func (p MemberPatch) Apply(m Member) Member {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Email != nil {
		m.Email = *p.Email
	}
	if p.Phone != nil {
		m.Phone = *p.Phone
	}
	if p.Avatar != nil {
		m.Avatar = *p.Avatar
	}
	if p.Role != nil {
		m.Role = *p.Role
	}
	if p.MonthlySavings != nil {
		m.MonthlySavings = *p.MonthlySavings
	}
	if p.TotalSaved != nil {
		m.TotalSaved = *p.TotalSaved
	}
	if p.TotalDue != nil {
		m.TotalDue = *p.TotalDue
	}
	if p.ProfitShare != nil {
		m.ProfitShare = *p.ProfitShare
	}
	return m
}

func (p MemberPatch) Validate() error {
	if p.IsEmpty() {
		return Invalid("no fields to update")
	}
	if p.Name != nil && (strings.TrimSpace(*p.Name) == "" || utf8.RuneCountInString(*p.Name) > MaxNameLen) {
		return Invalid("member name must be 1-120 characters")
	}
	if p.Email != nil && *p.Email != "" {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return Invalid(fmt.Sprintf("invalid email %q", *p.Email))
		}
	}
	if p.Role != nil && !p.Role.Valid() {
		return Invalid(fmt.Sprintf("invalid role %q", *p.Role))
	}
	if p.MonthlySavings != nil && p.MonthlySavings.IsNegative() {
		return Invalid("monthly savings cannot be negative")
	}
	return nil
}
