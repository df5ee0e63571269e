// Package testdb provides database helpers for tests.
//
// SQLite databases are created per test under t.TempDir() and migrated with
// the embedded schema, so store, service and API tests need no external
// services. PostgreSQL helpers connect to DATABASE_URL (or
// MEMCARDS_TEST_DB_URL) and skip the calling test when neither is set;
// WithTx runs a test inside a transaction that is always rolled back.
//
//	func TestMyFeature(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        decks := postgres.NewPostgresDeckStore(tx, nil)
//	        ...
//	    })
//	}
package testdb
