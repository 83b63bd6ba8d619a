package memory

import (
	"context"
	"fmt"
	"sync"

	"kycdesk/internal/kyc/models"
	"kycdesk/internal/ledger"
	"kycdesk/pkg/platform/sentinel"
)

// Row is one client's line in the ledger.
type Row struct {
	Status       string
	PersonalInfo models.PersonalInfo
}

// Ledger is an in-process ledger used when no spreadsheet is configured.
// Rows are created on first write. NewStrict behaves like the spreadsheet and
// only updates rows that already exist.
type Ledger struct {
	mu     sync.RWMutex
	rows   map[string]*Row
	strict bool
}

func New() *Ledger {
	return &Ledger{rows: make(map[string]*Row)}
}

// NewStrict returns a ledger that only updates rows added with AddRow.
func NewStrict() *Ledger {
	return &Ledger{rows: make(map[string]*Row), strict: true}
}

func (l *Ledger) AddRow(codeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[codeID]; !ok {
		l.rows[codeID] = &Row{}
	}
}

func (l *Ledger) row(codeID string) (*Row, error) {
	r, ok := l.rows[codeID]
	if ok {
		return r, nil
	}
	if l.strict {
		return nil, fmt.Errorf("ledger row %s: %w", codeID, sentinel.ErrNotFound)
	}
	r = &Row{}
	l.rows[codeID] = r
	return r, nil
}

func (l *Ledger) MarkSubmitted(_ context.Context, codeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.row(codeID)
	if err != nil {
		return err
	}
	r.Status = ledger.StatusSubmitted
	return nil
}

func (l *Ledger) RecordPersonalInfo(_ context.Context, codeID string, info models.PersonalInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.row(codeID)
	if err != nil {
		return err
	}
	r.PersonalInfo = info
	return nil
}

// Get returns a copy of the row for codeID.
func (l *Ledger) Get(codeID string) (Row, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rows[codeID]
	if !ok {
		return Row{}, false
	}
	return *r, true
}
