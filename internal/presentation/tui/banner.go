package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the menuflow ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"  _ __ ___   ___ _ __  _   _  / _| | _____      __", "#34d399"},
		{" | '_ ` _ \\ / _ \\ '_ \\| | | || |_| |/ _ \\ \\ /\\ / /", "#2dd4bf"},
		{" | | | | | |  __/ | | | |_| ||  _| | (_) \\ V  V / ", "#22d3ee"},
		{" |_| |_| |_|\\___|_| |_|\\__,_||_| |_|\\___/ \\_/\\_/  ", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
