package util

import "golang.org/x/term"

// IsTerminal reports whether the file descriptor is attached to a terminal.
// Gates the progress bar, colored logging, and interactive prompting.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
