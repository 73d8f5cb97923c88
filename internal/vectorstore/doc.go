// Package vectorstore provides vector storage behind a single Store
// contract across six backend engines.
//
// Backends disagree on distance semantics, ID schemes and filter syntax.
// Each adapter owns the translation to its engine and normalizes scores to
// a common [0,1] similarity scale, higher is better, before results leave
// the package.
package vectorstore
