// Package logx provides a thin structured logging facade over zerolog with
// console, file and (rate-limited) Telegram sinks that can be swapped at
// runtime via Service.Apply.
package logx
