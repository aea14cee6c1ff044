// Package diff turns pull request changes into the two artifacts the review
// pipeline needs: the unified diff text itself and the file/line -> diff
// position mapping that anchors inline review comments.
package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// PositionMap maps file path -> new-file line number -> diff position.
// "Position" is the review API's 1-based offset into a file's diff body,
// counted from the line below the file's first hunk header. It is distinct
// from the file's line number and resets per file.
type PositionMap map[string]map[int]int

// Resolve returns the diff position for (file, line), or false when the line
// is not an added line of the diff. Only added lines are addressable:
// comments can be anchored solely on lines the diff actually touches.
func (m PositionMap) Resolve(file string, line int) (int, bool) {
	lines, ok := m[strings.TrimPrefix(file, "./")]
	if !ok {
		return 0, false
	}
	pos, ok := lines[line]
	return pos, ok
}

var (
	fileHeaderRegex = regexp.MustCompile(`^diff --git a/.* b/(.*)$`)
	hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// ParsePositions builds a PositionMap from unified diff text. Pure function;
// the map is recomputed per run and never persisted.
//
// Counting rules: the position counter starts below each file's first hunk
// header and increments on every diff-body line, including later hunk headers
// and "\ No newline at end of file" markers. File headers and metadata lines
// (index, ---, +++, mode changes, binary markers) consume no positions.
// Added lines are recorded against the running new-file line number; removed
// lines do not advance it; context lines advance it unrecorded. A blank line
// inside a hunk body is a context line whose leading space was stripped in
// transit and counts like any other context line; the hunk header's old/new
// counts bound the body so trailing blank lines outside it are ignored.
func ParsePositions(diffText string) PositionMap {
	positions := make(PositionMap)

	var (
		currentFile  string
		position     int
		newLine      int
		inHunk       bool
		oldRemaining int
		newRemaining int
	)

	for _, line := range strings.Split(diffText, "\n") {
		if matches := fileHeaderRegex.FindStringSubmatch(line); matches != nil {
			currentFile = matches[1]
			position = 0
			newLine = 0
			inHunk = false
			oldRemaining = 0
			newRemaining = 0
			continue
		}

		if currentFile == "" {
			continue
		}

		if strings.HasPrefix(line, "@@") {
			matches := hunkHeaderRegex.FindStringSubmatch(line)
			if matches == nil {
				// Malformed hunk header; stop trusting line numbers for
				// this file rather than recording corrupted positions.
				inHunk = false
				continue
			}
			start, err := strconv.Atoi(matches[2])
			if err != nil {
				inHunk = false
				continue
			}
			if inHunk {
				// Hunk headers after the first one occupy a position.
				position++
			}
			inHunk = true
			newLine = start
			oldRemaining = hunkCount(matches[1])
			newRemaining = hunkCount(matches[3])
			continue
		}

		if !inHunk {
			// File metadata between the header and the first hunk:
			// index, ---/+++, mode changes, "Binary files ... differ".
			continue
		}

		if line == "" && oldRemaining <= 0 && newRemaining <= 0 {
			// Blank line past the hunk body: a split artifact from a
			// trailing newline, not part of the diff.
			continue
		}

		position++
		switch {
		case strings.HasPrefix(line, "+"):
			if _, ok := positions[currentFile]; !ok {
				positions[currentFile] = make(map[int]int)
			}
			positions[currentFile][newLine] = position
			newLine++
			newRemaining--
		case strings.HasPrefix(line, "-"):
			// Removed line: exists only on the old side.
			oldRemaining--
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file" consumes a position but is
			// not a line of either file version.
		default:
			// Context line, including a blank one whose leading space a
			// trimming transport stripped.
			newLine++
			oldRemaining--
			newRemaining--
		}
	}

	return positions
}

// hunkCount parses an optional line count from a hunk header range; unified
// diff omits the count when it is 1.
func hunkCount(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return n
}
