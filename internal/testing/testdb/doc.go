// Package testdb provides SurrealDB test databases for repository tests.
//
// # Test Database Setup
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    defer tdb.Close()
//	}
//
// New applies the embedded migrations and skips the test when no database
// is reachable. TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER and
// TEST_DB_PASSWORD select the instance.
//
// # Isolation
//
// Each TestDB gets its own namespace, removed when the test ends. Reset
// empties every table for subtests that want fresh rows on the same schema.
package testdb
