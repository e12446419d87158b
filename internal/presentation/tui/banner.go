package tui

import (
	"fmt"
	"io"
)

// PrintBanner writes the server start banner.
func PrintBanner(w io.Writer, color bool) {
	lines := []struct {
		text string
		hex  string
	}{
		{" _       _                _              ", "#818cf8"},
		{"| |_ ___| |___ _ __  ___ | |_ _ _ _  _  ", "#a78bfa"},
		{"|  _/ -_) / -_) '  \\/ -_)|  _| '_| || | ", "#e879f9"},
		{" \\__\\___|_\\___|_|_|_\\___| \\__|_|  \\_, | ", "#f472b6"},
		{"                                  |__/  ", "#fb7185"},
	}

	p := profile(color)
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.hex)))
	}
	fmt.Fprintln(w)
}
