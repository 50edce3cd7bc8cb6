// Package pipeline holds the stage machinery shared by the build and package
// commands: typed stage names and errors, a fluent builder, the sequential
// runner and the per-run report.
package pipeline
