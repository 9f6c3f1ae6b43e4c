package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
)

type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	TransactionID string            `json:"transaction_id,omitempty"`
	MemberID      string            `json:"member_id"`
	Categories    []models.Category `json:"categories,omitempty"`
	Delta         int64             `json:"delta"`
	Status        string            `json:"status"`
	Details       any               `json:"details,omitempty"`
}

// Logger writes one "AUDIT: {json}" line per ledger mutation.
type Logger struct {
	out logrus.FieldLogger
	now func() time.Time
}

func NewLogger(out logrus.FieldLogger) *Logger {
	if out == nil {
		out = logrus.StandardLogger()
	}
	return &Logger{out: out.WithField("component", "audit"), now: time.Now}
}

var _ ledger.Observer = (*Logger)(nil)

// LedgerChanged records a committed mutation.
func (a *Logger) LedgerChanged(_ context.Context, c ledger.Change) {
	event := Event{
		Timestamp:  a.now().UTC(),
		EventType:  "LEDGER_" + strings.ToUpper(string(c.Type)),
		MemberID:   c.MemberID,
		Categories: c.Categories,
		Delta:      c.Delta,
		Status:     "SUCCESS",
	}
	if c.TransactionID != 0 {
		event.TransactionID = strconv.FormatInt(c.TransactionID, 10)
	}

	balances := make(map[models.Category]int64, len(c.Categories))
	for _, cat := range c.Categories {
		balances[cat] = c.Balances.Get(cat)
	}
	event.Details = map[string]any{"balances": balances}
	a.log(event)
}

// LogError records a mutation that was rejected or failed.
func (a *Logger) LogError(operation, memberID, transactionID string, err error) {
	a.log(Event{
		Timestamp:     a.now().UTC(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		MemberID:      memberID,
		Status:        "FAILED",
		Details:       map[string]string{"operation": operation, "error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	a.out.Infof("AUDIT: %s", string(data))
}

