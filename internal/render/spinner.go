package render

import (
	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

// StartSpinner shows a spinner with text while a request runs and returns
// the function that removes it. Nothing is shown when enabled is false.
func StartSpinner(text string, enabled bool) func() {
	if !enabled {
		return func() {}
	}
	cursor.Hide()
	sp, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(text)
	if err != nil {
		cursor.Show()
		return func() {}
	}
	return func() {
		_ = sp.Stop()
		cursor.Show()
	}
}
