// Package chatui provides small, platform-neutral UI helpers:
//   - A card builder for title/description/color status payloads
//   - A line builder for lists, key/value rows and numbered items
//   - Renderers that flatten a card into plain text or Telegram HTML
//   - Rune-safe truncation and message splitting
package chatui
