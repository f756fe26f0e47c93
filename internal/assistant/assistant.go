// Package assistant answers member questions about savings, dues and
// investments in Bengali.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"forum/internal/core"
	"forum/internal/log"
)

// ErrUnavailable means no model is configured.
var ErrUnavailable = errors.New("assistant unavailable")

// FallbackReply is returned when the model call fails.
const FallbackReply = "দুঃখিত, আমি এই মুহূর্তে উত্তর দিতে পারছি না। অনুগ্রহ করে পরে চেষ্টা করুন।"

const (
	maxPromptLen   = 2000
	recentEntries  = 5
	defaultTimeout = 30 * time.Second
)

// Ledger is the read access the assistant needs to build a member's context.
type Ledger interface {
	GetMember(ctx context.Context, id string) (core.Member, error)
	ListTransactionsByMember(ctx context.Context, memberID string) ([]core.Transaction, error)
}

type Question struct {
	MemberID string `json:"memberId"`
	Prompt   string `json:"prompt"`
}

type Answer struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback,omitempty"`
}

type Service struct {
	gen     TextGenerator
	ledger  Ledger
	logger  *log.Logger
	timeout time.Duration
}

// NewService returns an assistant. A nil gen makes every question fail with ErrUnavailable.
func NewService(gen TextGenerator, ledger Ledger, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		gen:     gen,
		ledger:  ledger,
		logger:  logger.WithComponent(log.ComponentAssistant),
		timeout: defaultTimeout,
	}
}

type memberContext struct {
	Member       core.Member        `json:"member"`
	Transactions []core.Transaction `json:"recentTransactions"`
}

// Ask answers q for the member it names. Model failures are logged and
// answered with FallbackReply rather than returned.
func (s *Service) Ask(ctx context.Context, q Question) (Answer, error) {
	if s.gen == nil {
		return Answer{}, ErrUnavailable
	}
	prompt := strings.TrimSpace(q.Prompt)
	if prompt == "" {
		return Answer{}, core.Invalid("prompt is required")
	}
	if len(prompt) > maxPromptLen {
		return Answer{}, core.Invalid("prompt too long")
	}

	system, err := s.systemInstruction(ctx, strings.TrimSpace(q.MemberID))
	if err != nil {
		return Answer{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.gen.GenerateText(ctx, system, prompt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Assistant model call failed",
			log.FieldMemberID, q.MemberID,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
		return Answer{Reply: FallbackReply, Fallback: true}, nil
	}
	s.logger.InfoContext(ctx, "Assistant answered",
		log.FieldMemberID, q.MemberID,
		log.FieldDuration, time.Since(start).Milliseconds())
	return Answer{Reply: reply}, nil
}

func (s *Service) systemInstruction(ctx context.Context, memberID string) (string, error) {
	var mc memberContext
	if memberID != "" && s.ledger != nil {
		m, err := s.ledger.GetMember(ctx, memberID)
		if err != nil {
			return "", err
		}
		txs, err := s.ledger.ListTransactionsByMember(ctx, memberID)
		if err != nil {
			return "", err
		}
		if len(txs) > recentEntries {
			txs = txs[:recentEntries]
		}
		mc = memberContext{Member: m, Transactions: txs}
	}
	data, err := json.Marshal(mc)
	if err != nil {
		return "", fmt.Errorf("encode member context: %w", err)
	}
	return BuildSystemInstruction(string(data)), nil
}

// BuildSystemInstruction embeds the member's JSON context in the assistant's instructions.
func BuildSystemInstruction(memberJSON string) string {
	return `You are an AI assistant for "Forum Connect", a community savings group of 50 members.
Each member saves money monthly, which is invested in businesses like Super Shops and Agriculture.
The user is a member with the following data: ` + memberJSON + `.
Respond in Bengali language. Be polite, helpful, and transparent.
Explain savings, due amounts, and investment progress.`
}
