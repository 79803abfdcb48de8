package agent

import (
	"strings"
	"unicode/utf8"
)

// localSlashCommands are the builtin commands whose echoes appear in Claude
// transcripts as user messages. They operate on the local client and never
// start an agent task, so they must not count as triggers or display text.
var localSlashCommands = map[string]bool{
	"/clear":          true,
	"/compact":        true,
	"/config":         true,
	"/cost":           true,
	"/doctor":         true,
	"/help":           true,
	"/init":           true,
	"/login":          true,
	"/logout":         true,
	"/memory":         true,
	"/model":          true,
	"/permissions":    true,
	"/pr-comments":    true,
	"/review":         true,
	"/status":         true,
	"/terminal-setup": true,
	"/vim":            true,
}

const interruptMarker = "[Request interrupted by user"

// IsInterruptMarker reports whether a user message is the client's
// interruption sentinel rather than genuine input.
func IsInterruptMarker(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), interruptMarker)
}

// IsLocalCommandEcho reports whether a user message is the echo of a local
// client command (slash command or command-output block).
func IsLocalCommandEcho(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "<command-name>") ||
		strings.HasPrefix(trimmed, "<local-command-stdout>") ||
		strings.HasPrefix(trimmed, "Caveat: the messages below were generated by the user while running local commands") {
		return true
	}

	if strings.HasPrefix(trimmed, "/") {
		cmd := trimmed
		if i := strings.IndexAny(trimmed, " \t\n"); i > 0 {
			cmd = trimmed[:i]
		}
		return localSlashCommands[cmd]
	}
	return false
}

// IsSuppressed reports whether a user message must be hidden from display
// and ignored for task triggering.
func IsSuppressed(text string) bool {
	return IsInterruptMarker(text) || IsLocalCommandEcho(text)
}

// maxMessageLen bounds stored message text; transcripts can carry very large
// pasted content.
const maxMessageLen = 5000

// Truncate clamps message text to the display limit, backing up to a rune
// boundary so the cut never yields invalid UTF-8.
func Truncate(text string) string {
	if len(text) <= maxMessageLen {
		return text
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
