package store

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS account (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_verifier TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	last_login TIMESTAMP,
	verified INTEGER NOT NULL DEFAULT 0,
	allow_message_logging INTEGER NOT NULL DEFAULT 1,
	allow_history_access INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS message_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	sender TEXT NOT NULL,
	target TEXT NOT NULL,
	message TEXT NOT NULL,
	message_type TEXT NOT NULL,
	is_channel_message INTEGER NOT NULL,
	reply_to_id INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_history_target_ts
	ON message_history (target, timestamp);
CREATE INDEX IF NOT EXISTS idx_history_sender_ts
	ON message_history (sender, timestamp);
`

// Senders who disallow history access never show up in query results.
const accessibleWhere = `NOT EXISTS (
	SELECT 1 FROM account a
	WHERE a.username = m.sender COLLATE NOCASE
	AND a.allow_history_access = 0)`

// SQL is the database-backed Store.
type SQL struct {
	db *sqlx.DB
}

var _ Store = (*SQL)(nil)

// OpenSQL opens (and if necessary creates) the database at the given
// connection string and ensures the schema exists.
func OpenSQL(dsn string) (*SQL, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}

	return &SQL{db: db}, nil
}

func (s *SQL) CreateAccount(username, password, email string) error {
	verifier, err := bcrypt.GenerateFromPassword([]byte(password),
		bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}

	_, err = s.db.Exec(
		`INSERT INTO account (username, password_verifier, email, created_at)
		VALUES (?, ?, ?, ?)`,
		username, string(verifier), email, time.Now())

	return errors.Wrap(err, "inserting account")
}

func (s *SQL) Authenticate(username, password string) (bool, error) {
	var verifier string
	err := s.db.Get(&verifier,
		`SELECT password_verifier FROM account
		WHERE username = ? COLLATE NOCASE`, username)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "looking up account")
	}

	if bcrypt.CompareHashAndPassword([]byte(verifier),
		[]byte(password)) != nil {
		return false, nil
	}

	_, err = s.db.Exec(
		`UPDATE account SET last_login = ? WHERE username = ? COLLATE NOCASE`,
		time.Now(), username)
	if err != nil {
		return false, errors.Wrap(err, "recording login")
	}

	return true, nil
}

func (s *SQL) AccountExists(username string) (bool, error) {
	var count int
	err := s.db.Get(&count,
		`SELECT COUNT(*) FROM account WHERE username = ? COLLATE NOCASE`,
		username)
	if err != nil {
		return false, errors.Wrap(err, "counting accounts")
	}

	return count > 0, nil
}

func (s *SQL) Privacy(username string) (Privacy, error) {
	var row struct {
		AllowLogging bool `db:"allow_message_logging"`
		AllowHistory bool `db:"allow_history_access"`
	}
	err := s.db.Get(&row,
		`SELECT allow_message_logging, allow_history_access FROM account
		WHERE username = ? COLLATE NOCASE`, username)
	if err == sql.ErrNoRows {
		return Privacy{AllowLogging: true, AllowHistory: true}, nil
	}
	if err != nil {
		return Privacy{}, errors.Wrap(err, "looking up privacy")
	}

	return Privacy{
		AllowLogging: row.AllowLogging,
		AllowHistory: row.AllowHistory,
	}, nil
}

// SetPrivacy updates an account's privacy flags. Administration
// surface.
func (s *SQL) SetPrivacy(username string, p Privacy) error {
	_, err := s.db.Exec(
		`UPDATE account SET allow_message_logging = ?, allow_history_access = ?
		WHERE username = ? COLLATE NOCASE`,
		p.AllowLogging, p.AllowHistory, username)

	return errors.Wrap(err, "updating privacy")
}

func (s *SQL) AppendHistory(e HistoryEntry) (int64, error) {
	privacy, err := s.Privacy(e.Sender)
	if err != nil {
		return 0, err
	}
	if !privacy.AllowLogging {
		return 0, nil
	}

	if e.Timestamp == 0 {
		e.Timestamp = NowMs(time.Now())
	}

	res, err := s.db.Exec(
		`INSERT INTO message_history
		(timestamp, sender, target, message, message_type,
		 is_channel_message, reply_to_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Sender, e.Target, e.Message, e.Type, e.IsChannel,
		e.ReplyTo)
	if err != nil {
		return 0, errors.Wrap(err, "inserting history")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "reading insert id")
	}

	return id, nil
}

// selectRecent runs a query ordered newest-first with a limit, then
// flips the result to chronological order.
func (s *SQL) selectRecent(query string, args ...interface{}) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := s.db.Select(&entries, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying history")
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

func (s *SQL) ChannelHistory(channel string, limit int,
	beforeMs int64) ([]HistoryEntry, error) {
	if beforeMs == 0 {
		return s.selectRecent(
			`SELECT * FROM message_history m
			WHERE m.target = ? COLLATE NOCASE AND m.is_channel_message = 1
			AND `+accessibleWhere+`
			ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
			channel, limit)
	}

	return s.selectRecent(
		`SELECT * FROM message_history m
		WHERE m.target = ? COLLATE NOCASE AND m.is_channel_message = 1
		AND m.timestamp < ?
		AND `+accessibleWhere+`
		ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
		channel, beforeMs, limit)
}

func (s *SQL) PrivateHistory(user1, user2 string, limit int,
	beforeMs int64) ([]HistoryEntry, error) {
	pairWhere := `m.is_channel_message = 0
		AND ((m.sender = ? COLLATE NOCASE AND m.target = ? COLLATE NOCASE)
		OR (m.sender = ? COLLATE NOCASE AND m.target = ? COLLATE NOCASE))`

	if beforeMs == 0 {
		return s.selectRecent(
			`SELECT * FROM message_history m WHERE `+pairWhere+`
			AND `+accessibleWhere+`
			ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
			user1, user2, user2, user1, limit)
	}

	return s.selectRecent(
		`SELECT * FROM message_history m WHERE `+pairWhere+`
		AND m.timestamp < ?
		AND `+accessibleWhere+`
		ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
		user1, user2, user2, user1, beforeMs, limit)
}

func (s *SQL) Search(query, target string, limit int) ([]HistoryEntry, error) {
	pattern := "%" + query + "%"

	if target == "" {
		return s.selectRecent(
			`SELECT * FROM message_history m
			WHERE m.message LIKE ?
			AND `+accessibleWhere+`
			ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
			pattern, limit)
	}

	return s.selectRecent(
		`SELECT * FROM message_history m
		WHERE m.message LIKE ? AND m.target = ? COLLATE NOCASE
		AND `+accessibleWhere+`
		ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
		pattern, target, limit)
}

func (s *SQL) MessagesBySender(sender string, limit int) ([]HistoryEntry, error) {
	return s.selectRecent(
		`SELECT * FROM message_history m
		WHERE m.sender = ? COLLATE NOCASE
		AND `+accessibleWhere+`
		ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
		sender, limit)
}

func (s *SQL) Message(id int64) (*HistoryEntry, error) {
	var e HistoryEntry
	err := s.db.Get(&e,
		`SELECT * FROM message_history m WHERE m.id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "looking up message")
	}

	return &e, nil
}

func (s *SQL) Replies(parentID int64, limit int) ([]HistoryEntry, error) {
	return s.selectRecent(
		`SELECT * FROM message_history m
		WHERE m.reply_to_id = ?
		AND `+accessibleWhere+`
		ORDER BY m.timestamp DESC, m.id DESC LIMIT ?`,
		parentID, limit)
}

func (s *SQL) CleanupOlderThan(cutoffMs int64) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM message_history WHERE timestamp < ?`, cutoffMs)
	if err != nil {
		return 0, errors.Wrap(err, "deleting history")
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deletions")
	}

	return count, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
