package store

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Memory is an in-memory Store. It mirrors the SQL implementation's
// semantics so the core runs and tests without a database.
type Memory struct {
	mu sync.Mutex

	// Canonical (lowercased) username to account.
	accounts map[string]*Account

	entries []HistoryEntry
	nextID  int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*Account),
		nextID:   1,
	}
}

func canonUsername(u string) string {
	return strings.ToLower(u)
}

func (m *Memory) CreateAccount(username, password, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := canonUsername(username)
	if _, exists := m.accounts[key]; exists {
		return errors.Errorf("account exists: %s", username)
	}

	verifier, err := bcrypt.GenerateFromPassword([]byte(password),
		bcrypt.MinCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}

	m.accounts[key] = &Account{
		ID:                  int64(len(m.accounts) + 1),
		Username:            username,
		Verifier:            string(verifier),
		Email:               email,
		CreatedAt:           time.Now(),
		AllowMessageLogging: true,
		AllowHistoryAccess:  true,
	}

	return nil
}

func (m *Memory) Authenticate(username, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, exists := m.accounts[canonUsername(username)]
	if !exists {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(account.Verifier),
		[]byte(password))
	if err != nil {
		return false, nil
	}

	now := time.Now()
	account.LastLogin = &now

	return true, nil
}

func (m *Memory) AccountExists(username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.accounts[canonUsername(username)]
	return exists, nil
}

func (m *Memory) Privacy(username string) (Privacy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.privacyLocked(username), nil
}

func (m *Memory) privacyLocked(username string) Privacy {
	account, exists := m.accounts[canonUsername(username)]
	if !exists {
		return Privacy{AllowLogging: true, AllowHistory: true}
	}

	return Privacy{
		AllowLogging: account.AllowMessageLogging,
		AllowHistory: account.AllowHistoryAccess,
	}
}

// SetPrivacy updates an account's privacy flags. Administration
// surface.
func (m *Memory) SetPrivacy(username string, p Privacy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, exists := m.accounts[canonUsername(username)]
	if !exists {
		return errors.Errorf("no such account: %s", username)
	}

	account.AllowMessageLogging = p.AllowLogging
	account.AllowHistoryAccess = p.AllowHistory

	return nil
}

func (m *Memory) AppendHistory(e HistoryEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.privacyLocked(e.Sender).AllowLogging {
		return 0, nil
	}

	e.ID = m.nextID
	m.nextID++

	if e.Timestamp == 0 {
		e.Timestamp = NowMs(time.Now())
	}

	m.entries = append(m.entries, e)

	return e.ID, nil
}

// collect returns matching entries in chronological order, capped to
// the most recent limit. Senders who disallow history access are
// skipped.
func (m *Memory) collect(limit int, match func(HistoryEntry) bool) []HistoryEntry {
	var out []HistoryEntry

	for _, e := range m.entries {
		if !m.privacyLocked(e.Sender).AllowHistory {
			continue
		}
		if match(e) {
			out = append(out, e)
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out
}

func (m *Memory) ChannelHistory(channel string, limit int,
	beforeMs int64) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collect(limit, func(e HistoryEntry) bool {
		if !e.IsChannel || !strings.EqualFold(e.Target, channel) {
			return false
		}
		return beforeMs == 0 || e.Timestamp < beforeMs
	}), nil
}

func (m *Memory) PrivateHistory(user1, user2 string, limit int,
	beforeMs int64) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collect(limit, func(e HistoryEntry) bool {
		if e.IsChannel {
			return false
		}
		pair := (strings.EqualFold(e.Sender, user1) && strings.EqualFold(e.Target, user2)) ||
			(strings.EqualFold(e.Sender, user2) && strings.EqualFold(e.Target, user1))
		if !pair {
			return false
		}
		return beforeMs == 0 || e.Timestamp < beforeMs
	}), nil
}

func (m *Memory) Search(query, target string, limit int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	query = strings.ToLower(query)

	return m.collect(limit, func(e HistoryEntry) bool {
		if target != "" && !strings.EqualFold(e.Target, target) {
			return false
		}
		return strings.Contains(strings.ToLower(e.Message), query)
	}), nil
}

func (m *Memory) MessagesBySender(sender string, limit int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collect(limit, func(e HistoryEntry) bool {
		return strings.EqualFold(e.Sender, sender)
	}), nil
}

func (m *Memory) Message(id int64) (*HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == id {
			e := m.entries[i]
			return &e, nil
		}
	}

	return nil, nil
}

func (m *Memory) Replies(parentID int64, limit int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collect(limit, func(e HistoryEntry) bool {
		return e.ReplyTo == parentID
	}), nil
}

func (m *Memory) CleanupOlderThan(cutoffMs int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	var deleted int64

	for _, e := range m.entries {
		if e.Timestamp < cutoffMs {
			deleted++
			continue
		}
		kept = append(kept, e)
	}

	m.entries = kept

	return deleted, nil
}

func (m *Memory) Close() error {
	return nil
}
