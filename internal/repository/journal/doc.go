// Package journal records finished alerting episodes.
//
// FileRepository appends one protobuf-JSON object per line; SQLiteRepository
// keeps the same records in an sqlite table. Both implement Repository, which
// the notification dispatcher writes to.
package journal
