package storage

// SessionKey holds the persisted session record (token and user snapshot).
const SessionKey = "@session"

const expensesKeyPrefix = "@expenses_"

// ExpensesKey is the key of one user's expense collection.
func ExpensesKey(userID string) string {
	return expensesKeyPrefix + userID
}
