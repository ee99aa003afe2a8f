// Package engine compiles configured continuous queries and drives them
// tick by tick over a shared input stream. Each tick carries the tuples
// entering and leaving the input; each query answers with the delta of
// its own materialized result. Queries are isolated: an evaluation
// failure costs the query that tick and nothing else.
package engine
