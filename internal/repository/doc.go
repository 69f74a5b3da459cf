// Package repository defines the run ledger interface for clustercfg.
//
// The ledger keeps a history of configuration runs: the membership seen,
// the derived plan and the outcome of every trust target. It is advisory;
// a run never reads it to make decisions.
//
// The sqlite subpackage implements the ledger on a pure-Go SQLite driver
// with WAL mode. Its schema is created on open and tests use in-memory
// databases.
package repository
