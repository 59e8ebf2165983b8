// Package logx configures studybot's structured logging.
//
// logx.Logger is a thin value type on top of zerolog:
//   - console output keeps a short timestamp and file:line caller
//   - the optional file sink writes JSON lines
//   - the optional chat sink forwards WARN+ lines to an operator chat, rate limited
package logx
