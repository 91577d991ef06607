package rcs

import (
	"fmt"
	"strconv"
	"strings"
)

// applyEdScript applies an RCS-style forward ed script to text and returns
// the result. RCS delta text bodies consist of lines of the form:
//
//	a<line> <count>
//	<count inserted lines, verbatim>
//	d<line> <count>
//
// "a N C" inserts C lines after line N of the original source;
// "d N C" deletes C lines starting at line N. Commands are applied in the
// order given against line numbers of the *original* unmodified text, per
// RCS convention, so an explicit line-number offset is tracked as lines are
// inserted or removed.
func applyEdScript(base, script string) (string, error) {
	if script == "" {
		return base, nil
	}

	srcLines := splitKeepEnds(base)
	var out []string
	// commands reference 1-based line numbers in the original `base`.
	copied := 0 // number of srcLines already copied into out

	scriptLines := strings.Split(script, "\n")
	i := 0
	for i < len(scriptLines) {
		cmd := scriptLines[i]
		i++
		if cmd == "" {
			continue
		}

		op := cmd[0]
		fields := strings.Fields(cmd[1:])
		if len(fields) != 2 {
			return "", fmt.Errorf("malformed ed command %q", cmd)
		}
		lineNo, err := strconv.Atoi(fields[0])
		if err != nil {
			return "", fmt.Errorf("malformed line number in %q: %w", cmd, err)
		}
		count, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("malformed count in %q: %w", cmd, err)
		}

		switch op {
		case 'a':
			// Copy through lineNo (1-based, inclusive) from source, then
			// insert the following count lines verbatim from the script.
			if lineNo > len(srcLines) {
				lineNo = len(srcLines)
			}
			for ; copied < lineNo; copied++ {
				out = append(out, srcLines[copied])
			}
			for n := 0; n < count && i < len(scriptLines); n, i = n+1, i+1 {
				line := scriptLines[i]
				// The last element of the split has no newline in the
				// script itself, so it gets none here either.
				if i < len(scriptLines)-1 {
					line += "\n"
				}
				out = append(out, line)
			}
		case 'd':
			// Copy everything up to (not including) lineNo, then skip
			// count lines from the source.
			start := lineNo - 1
			if start > len(srcLines) {
				start = len(srcLines)
			}
			for ; copied < start; copied++ {
				out = append(out, srcLines[copied])
			}
			copied += count
			if copied > len(srcLines) {
				copied = len(srcLines)
			}
		default:
			return "", fmt.Errorf("unknown ed command %q", cmd)
		}
	}

	for ; copied < len(srcLines); copied++ {
		out = append(out, srcLines[copied])
	}

	return strings.Join(out, ""), nil
}

// splitKeepEnds splits s into lines, each retaining its trailing "\n"
// (the final line keeps none if s does not end in one).
func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
