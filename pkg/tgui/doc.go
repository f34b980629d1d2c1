// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard builders
//   - Callback data helpers (scope:action:payload)
//   - HTML escaping/wrapping for ParseMode="HTML"
//   - Unicode-safe truncation and message splitting
package tgui
