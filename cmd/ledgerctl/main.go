// Command ledgerctl inspects and edits the local daybook state: saved day
// summaries, forward recalculation and the theme preference.
package main

import (
	"os"
	"time"
)

// nowFunc anchors the week/month presets; tests replace it.
var nowFunc = time.Now

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
