// Package logx configures fifosched's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - Machine output JSON-structured, one event per line
//
// The scheduling engine never logs. The host dispatch loop and the CLI do.
package logx
