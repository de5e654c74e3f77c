// Package chat adapts text chat messages to ladder commands.
//
// A Parser recognises prefixed commands ("!q", "!report 3 w"), a
// Dispatcher calls the matching ladder.Service operation and renders the
// reply, and a Directory supplies display names. Names are cosmetic: every
// command is keyed on the numeric participant ID supplied by the platform.
package chat
