// Package report renders pipeline results for people and for the trip
// review tooling: per-bag TTC channel files, event tables, a spreadsheet,
// an interactive HTML chart page and a static TTC plot.
package report
