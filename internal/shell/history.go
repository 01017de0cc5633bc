package shell

import (
	"bufio"
	"fmt"
	"os"
)

// History is the shell's persisted command history (spec §6 "Persisted
// state"). It holds at most maxEntries lines, oldest dropped first.
type History struct {
	path       string
	maxEntries int
	lines      []string
}

// LoadHistory reads path (missing file is not an error) and caps the
// in-memory history at maxEntries.
func LoadHistory(path string, maxEntries int) (*History, error) {
	h := &History{path: path, maxEntries: maxEntries}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("shell: open history %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		h.lines = append(h.lines, scanner.Text())
	}
	h.trim()
	return h, nil
}

// Append records one command, trimming the oldest entry if over
// capacity, and persists the whole history file.
func (h *History) Append(cmd string) error {
	if cmd == "" {
		return nil
	}
	h.lines = append(h.lines, cmd)
	h.trim()
	return h.save()
}

// Entries returns the history in oldest-first order.
func (h *History) Entries() []string { return h.lines }

func (h *History) trim() {
	if h.maxEntries > 0 && len(h.lines) > h.maxEntries {
		h.lines = h.lines[len(h.lines)-h.maxEntries:]
	}
}

func (h *History) save() error {
	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("shell: write history %q: %w", h.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range h.lines {
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}
