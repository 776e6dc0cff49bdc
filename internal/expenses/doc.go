// Package expenses persists one expense collection per user and keeps the
// collection of the signed-in user in memory.
//
// A Repository reads and writes whole collections through a
// storage.KeyValueStore. A Book is the live collection of one identity: every
// mutation is saved before it returns. A Tracker owns the active Book and
// makes sure a load started for a previous identity can never replace the
// collection of the current one.
package expenses
