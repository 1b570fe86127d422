package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the argview banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct {
		text  string
		color string
	}{
		{"                            _                ", "#818cf8"},
		{"   __ _ _ __ __ _  __   __ (_) ___ __      __", "#a78bfa"},
		{"  / _` | '__/ _` | \\ \\ / / | |/ _ \\\\ \\ /\\ / /", "#c084fc"},
		{" | (_| | | | (_| |  \\ V /  | |  __/ \\ V  V / ", "#e879f9"},
		{"  \\__,_|_|  \\__, |   \\_/   |_|\\___|  \\_/\\_/  ", "#f472b6"},
		{"            |___/                            ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
