// Package store persists user accounts and message history. The server
// core talks to the Store interface only; there is a SQL-backed
// implementation for production and an in-memory one for tests and
// storeless runs.
package store

import "time"

// Account is a registered user account.
type Account struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`

	// Verifier is the opaque password verifier (a bcrypt hash).
	Verifier string `db:"password_verifier"`

	Email     string     `db:"email"`
	CreatedAt time.Time  `db:"created_at"`
	LastLogin *time.Time `db:"last_login"`
	Verified  bool       `db:"verified"`

	AllowMessageLogging bool `db:"allow_message_logging"`
	AllowHistoryAccess  bool `db:"allow_history_access"`
}

// Privacy holds an account's privacy flags. Unknown accounts default to
// allowing both.
type Privacy struct {
	AllowLogging bool
	AllowHistory bool
}

// HistoryEntry is one stored message.
type HistoryEntry struct {
	ID int64 `db:"id"`

	// Timestamp is in milliseconds since the Unix epoch.
	Timestamp int64 `db:"timestamp"`

	Sender  string `db:"sender"`
	Target  string `db:"target"`
	Message string `db:"message"`

	// Type is the wire command that carried the message, PRIVMSG or
	// NOTICE.
	Type string `db:"message_type"`

	IsChannel bool `db:"is_channel_message"`

	// ReplyTo is the id of the entry this replies to, 0 when none.
	ReplyTo int64 `db:"reply_to_id"`
}

// Store is the persistence boundary the server core consumes. All
// methods are synchronous and may block on I/O; the connection task
// isolates that blocking.
type Store interface {
	// CreateAccount registers an account. Administration and test
	// surface; the core itself never creates accounts.
	CreateAccount(username, password, email string) error

	// Authenticate reports whether the password matches the account's
	// verifier.
	Authenticate(username, password string) (bool, error)

	AccountExists(username string) (bool, error)

	// Privacy returns the account's privacy flags, or the defaults
	// (true, true) when the account does not exist.
	Privacy(username string) (Privacy, error)

	// AppendHistory stores a message and returns its id. It returns 0
	// and stores nothing when the sender's AllowMessageLogging flag is
	// false.
	AppendHistory(e HistoryEntry) (int64, error)

	// ChannelHistory returns up to limit channel messages in
	// chronological order, optionally only those before beforeMs.
	// Messages from senders who disallow history access are excluded,
	// here and in every other query.
	ChannelHistory(channel string, limit int, beforeMs int64) ([]HistoryEntry, error)

	// PrivateHistory returns the direct messages between two users.
	PrivateHistory(user1, user2 string, limit int, beforeMs int64) ([]HistoryEntry, error)

	// Search returns messages whose body contains query, optionally
	// restricted to one target.
	Search(query, target string, limit int) ([]HistoryEntry, error)

	MessagesBySender(sender string, limit int) ([]HistoryEntry, error)

	// Message returns one entry by id, or nil when unknown.
	Message(id int64) (*HistoryEntry, error)

	// Replies returns the entries whose ReplyTo is parentID.
	Replies(parentID int64, limit int) ([]HistoryEntry, error)

	// CleanupOlderThan deletes entries older than cutoffMs and returns
	// how many were deleted.
	CleanupOlderThan(cutoffMs int64) (int64, error)

	Close() error
}

// NowMs is the moment t in the store's millisecond representation.
func NowMs(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
