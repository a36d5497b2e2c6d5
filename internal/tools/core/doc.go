// Package core provides the generic workspace tools: file operations and
// search. Paths reaching these executors have already been resolved by the
// dispatcher through the workspace sandbox; executors trust the path they
// are handed and never re-derive one.
package core
