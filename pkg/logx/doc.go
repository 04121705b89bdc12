// Package logx configures hllstatus's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured and size-rotated
//   - Optional chat sink (min-level + rate limiting), e.g. a Discord webhook
package logx
