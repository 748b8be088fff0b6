// Package ui styles terminal output for the spotcanvas CLI with lipgloss.
//
// [Palette] holds the named styles. [PrintProgress] renders [tasks.ProgressUpdate] values as
// they arrive from a batch run and [Summary] renders the final tally of a [tasks.BatchResult].
package ui
