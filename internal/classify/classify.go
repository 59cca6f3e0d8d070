// Package classify decides which invocation protocol a CL command needs.
//
// Display and work-with commands produce a formatted, paged listing. They run
// through the line-mode "system" utility, and no job log can be captured for
// them. Everything else goes through the XMLSERVICE toolkit, which reports
// errors through the job log.
package classify

import "strings"

// Protocol is the invocation path for a command.
type Protocol int

const (
	// Procedural commands run through the structured toolkit call.
	Procedural Protocol = iota
	// Screen commands run through the line-mode shell invocation.
	Screen
)

func (p Protocol) String() string {
	if p == Screen {
		return "screen"
	}
	return "procedural"
}

// screenPrefixes are matched against the upper-cased command text.
var screenPrefixes = []string{"DSP", "QSYS/DSP", "WRK", "QSYS/WRK"}

// outputStar is the OUTPUT(*) parameter: the command writes its listing to the
// display, or to the job's spooled output in batch, so it is treated as Screen.
const outputStar = "OUTPUT(*)"

// Classify returns Screen for display/work-with verbs or commands that ask for
// OUTPUT(*), and Procedural otherwise. The match is purely textual: a DSP verb
// that does not page output still classifies as Screen.
func Classify(command string) Protocol {
	cmd := Normalize(command)
	for _, p := range screenPrefixes {
		if strings.HasPrefix(cmd, p) {
			return Screen
		}
	}
	if strings.Contains(cmd, outputStar) {
		return Screen
	}
	return Procedural
}

// IsScreen is shorthand for Classify(command) == Screen.
func IsScreen(command string) bool { return Classify(command) == Screen }

// Normalize trims and upper-cases command text the way task commands submit it.
func Normalize(command string) string {
	return strings.ToUpper(strings.TrimSpace(command))
}
