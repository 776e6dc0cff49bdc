// Package query answers read-only questions over an expense collection:
// month selection and filtering, ordering, day grouping, category totals
// and the month pager arithmetic.
//
// Every function is pure. Inputs are never mutated and the same arguments
// always yield equal results. Calendar questions are answered in the
// location passed in; a nil location means time.Local.
package query
