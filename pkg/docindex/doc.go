// Package docindex is the document index manager: a persistent full-text
// index of two-field documents (identifier and text) with two durability
// levels.
//
// Auto-committing operations ([Manager.AddDocument], [Manager.AddDocumentsBatch],
// [Manager.DeleteDocument], [Manager.DeleteDocumentsBatch],
// [Manager.UpdateDocument]) stage their changes, commit, and reload the
// reader before returning, so the change is visible to the next read.
// No-commit operations ([Manager.AddDocumentNoCommit],
// [Manager.DeleteDocumentNoCommit]) only stage; nothing they do is visible
// until [Manager.Commit].
//
// # Usage
//
//	m := docindex.New(docindex.WithBackend(docindex.BackendSQLite))
//	if err := m.Initialize(ctx, "/var/lib/docidx"); err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	_ = m.AddDocumentsBatch(ctx, []docindex.Document{
//	    {ID: "1", Text: "Flutter is a UI toolkit"},
//	    {ID: "2", Text: "Rust is a systems language"},
//	})
//	results, err := m.SearchDocuments(ctx, "Flutter OR Rust", 10)
//
// # Query syntax
//
// Bare terms match words; "quoted words" match a phrase; a trailing * is a
// prefix match; AND, OR and NOT (upper case only) combine clauses with
// precedence NOT > AND > OR; parentheses group. Clauses written side by
// side are combined with OR.
//
// # Thread Safety
//
// A Manager is safe for concurrent use. Mutations and commits are
// serialised; searches and lookups run in parallel against the last
// committed snapshot and never wait for writers.
package docindex
