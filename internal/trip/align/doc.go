// Package align is the time alignment service for independently sampled
// trip channels.
//
// Every nearest-timestamp lookup in the pipeline goes through Series, a
// sorted, duplicate-free sample slice searched by binary search. Ties
// between two equally distant samples resolve to the earlier timestamp.
package align
