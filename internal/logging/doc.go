// Package logging configures structured slog output for docidx.
//
// Commands log JSON lines to ~/.docidx/logs/docidx.log (size-rotated) and,
// unless the process speaks a protocol on stdio, to stderr as well.
// The --debug flag lowers the level to debug.
package logging
