// Package citeproc adapts an application's citations to a citation-processing
// engine handle. It builds clusters from citation requests, keeps the engine's
// document order in sync, manages uncited items and translates the engine's
// bibliography output into the legacy consumer shape.
package citeproc
