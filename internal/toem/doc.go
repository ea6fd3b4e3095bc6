// Package toem implements The Open-Ended Machine, a recursive probabilistic
// argument resolver.
//
// An Argument starts from an integer probability exponent p built from two
// lexicon phrases (a base probability and a skill level). Pros raise p, cons
// lower it; a pro or con may itself be an Argument that is resolved first and
// only counts if it succeeds. Resolution rolls a single uniform variate d
// against PValue(p) and reports a signed increment: zero or more on success,
// negative on failure. Failed arguments can name the items to blame.
//
// Resolution is deterministic given the variates. Every Argument draws from
// a Source; tests inject fixed sources or call ResolveWith.
package toem
