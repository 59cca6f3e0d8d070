// Package terminal wraps the few raw terminal operations the CLI needs:
// measuring the width, reading a password without echo and clearing a prompt.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultWidth is used when stdout is not a terminal.
const DefaultWidth = 80

// ErrNotTerminal is returned by ReadSecret when stdin is not a terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Width returns the width of stdout, or DefaultWidth.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return DefaultWidth
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadSecret prints prompt to out and reads a line from stdin without echo.
func ReadSecret(out io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}
	fmt.Fprint(out, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// LinesFor returns how many terminal lines textLength characters occupy at
// width, plus the line the cursor moved to after Enter.
func LinesFor(textLength, width int) int {
	if width <= 0 {
		width = DefaultWidth
	}
	lines := int(math.Ceil(float64(textLength) / float64(width)))
	if lines < 1 {
		lines = 1
	}
	return lines + 1
}

// ClearPreviousLines clears a prompt of textLength characters and the
// answer line below it, using ANSI escapes.
func ClearPreviousLines(textLength int) {
	n := LinesFor(textLength, Width())
	for i := 0; i < n; i++ {
		fmt.Print("\r\x1b[2K")
		if i < n-1 {
			fmt.Print("\x1b[1A")
		}
	}
}
