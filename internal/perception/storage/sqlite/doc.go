// Package sqlite contains the SQLite repository for perception
// evaluation results.
//
// All database read/write operations for metric cycles belong here
// rather than in the perception package. This keeps the evaluation
// logic free of SQL noise and makes it easier to swap storage backends
// for testing.
package sqlite
