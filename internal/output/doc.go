// Package output exports a finished review run for machines and pull
// requests. The colored terminal report is printed by package review; this
// package only writes the optional --out file.
//
// Three formats are supported:
//   - json     the full run summary, one entry per check
//   - markdown a table and collapsible feedback, suitable for a PR comment
//   - sarif    SARIF v2.1.0, one rule per check, for code scanning uploads
package output
