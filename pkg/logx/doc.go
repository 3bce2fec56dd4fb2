// Package logx is taskclock's structured logging: a small value-type wrapper
// over zerolog with a Service that swaps sinks and levels when the config is
// reloaded. Console output is human readable; the optional file sink gets
// JSON lines.
package logx
