// Package streampref is a continuous preference query engine over tuple
// streams.
//
// The input is a stream of timestamped deltas: tuples entering and
// leaving the active set. Queries rank that data with conditional
// preference rules and maintain their results incrementally, emitting
// only what changed at each tick.
//
// Tuple queries (best, topk) rank the active set directly. Sequence
// queries group tuples into per-entity sequences through a sliding
// window, optionally reshape the candidates (conseq, endseq, length
// bounds) and rank whole sequences with temporal preference rules
// (bestseq, topkseq). Every query class offers several evaluation
// strategies that agree on results and differ only in how much work a
// tick costs.
//
// The packages layer bottom-up: tuple and sequence are the data model,
// preference the rule theories, dominance and seqtree the evaluation
// strategies, engine the tick driver, and config the YAML surface. The
// service around them (cmd/streampref) feeds the engine from a NATS
// subject and publishes per-query result subjects, with Prometheus
// metrics on the side.
package streampref
