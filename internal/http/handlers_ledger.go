package http

import (
	"net/http"

	"forum/internal/core"
	"forum/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

// transactionBody accepts "type"/"date" as aliases of "kind"/"occurredOn".
type transactionBody struct {
	MemberID       string               `json:"memberId"`
	Amount         *core.Money          `json:"amount"`
	Kind           core.TransactionKind `json:"kind"`
	Type           core.TransactionKind `json:"type"`
	Description    string               `json:"description"`
	OccurredOn     core.Date            `json:"occurredOn"`
	Date           core.Date            `json:"date"`
	IdempotencyKey string               `json:"idempotencyKey"`
}

func (b transactionBody) request(headerKey string) (services.TransactionRequest, error) {
	kind := b.Kind
	if kind == "" {
		kind = b.Type
	} else if b.Type != "" && b.Type != kind {
		return services.TransactionRequest{}, core.Invalid("kind and type disagree")
	}

	occurred := b.OccurredOn
	if occurred.IsZero() {
		occurred = b.Date
	}

	key := sanitizeInput(b.IdempotencyKey)
	headerKey = sanitizeInput(headerKey)
	switch {
	case key == "":
		key = headerKey
	case headerKey != "" && headerKey != key:
		return services.TransactionRequest{}, core.Invalid("Idempotency-Key header and body disagree")
	}

	return services.TransactionRequest{
		MemberID:       sanitizeInput(b.MemberID),
		Amount:         b.Amount,
		Kind:           kind,
		Description:    sanitizeInput(b.Description),
		OccurredOn:     occurred,
		IdempotencyKey: key,
	}, nil
}

// handleRecordTransaction answers 201 for a new entry and 200 when an
// idempotency key replays an earlier one.
func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var body transactionBody
	if err := decodeJSON(w, r, &body, false); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := body.request(r.Header.Get(idempotencyHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.svc.Ledger.RecordTransaction(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Replayed {
		NewResponse().JSON(map[string]any{"id": res.ID, "replayed": true}).Write(w)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(map[string]string{"id": res.ID}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Ledger.ListTransactions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(txs).Write(w)
}

func (s *Server) handleMemberTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Ledger.ListTransactionsByMember(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(txs).Write(w)
}
