// Package keyword implements CVS-compatible RCS keyword substitution
// ("$Id$" and friends) over a checked-out blob.
package keyword

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// Context carries everything the expander needs to render a keyword for
// one revision of one file.
type Context struct {
	RCSPath    string // filesystem path to the ",v" file (for Source/Header)
	Filename   string // working-copy-relative path (for RCSfile)
	Revision   string
	Author     string
	State      string
	Date       time.Time
	Log        string
	ExpandMode string // the RCS header's "expand" field
	LocalID    string // from CVSROOT/options "tag=", empty if unconfigured
}

// Active reports whether expansion applies at all: binary files and
// non-default expand modes are left untouched.
func Active(mode string, expandMode string) bool {
	if mode == "b" {
		return false
	}
	return expandMode == "" || expandMode == "kv"
}

var keywordPattern = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9]*)(:[^$\n]*)?\$`)

// Expand performs keyword substitution on blob and returns the result. It
// is a no-op unless Active(mode, ctx.ExpandMode) holds.
func Expand(blob []byte, mode string, ctx Context) []byte {
	if !Active(mode, ctx.ExpandMode) {
		return blob
	}

	lines := splitKeepEnds(string(blob))
	var out strings.Builder
	for _, line := range lines {
		out.WriteString(expandLine(line, ctx))
	}
	return []byte(out.String())
}

func expandLine(line string, ctx Context) string {
	loc := keywordPattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}

	name := line[loc[2]:loc[3]]
	prefix := line[:loc[0]]
	suffix := line[loc[1]:]

	value, ok := render(name, ctx)
	if !ok {
		// Unknown keyword: leave the literal text untouched and keep
		// scanning the remainder of the line for another occurrence.
		return prefix + line[loc[0]:loc[1]] + expandLine(suffix, ctx)
	}

	if name == "Log" {
		return renderLog(prefix, suffix, ctx)
	}

	return prefix + "$" + name + ": " + value + " $" + expandLine(suffix, ctx)
}

// render returns the substituted value (without the surrounding "$Name: "
// and " $") for every keyword except Log, which needs multi-line handling.
func render(name string, ctx Context) (string, bool) {
	base := path.Base(ctx.Filename)
	dateStr := ctx.Date.UTC().Format("2006/01/02 15:04:05")

	switch name {
	case "Id":
		return fmt.Sprintf("%s,v %s %s %s %s", base, ctx.Revision, dateStr, ctx.Author, ctx.State), true
	case "Header":
		return fmt.Sprintf("%s %s %s %s %s", ctx.RCSPath, ctx.Revision, dateStr, ctx.Author, ctx.State), true
	case "Author":
		return ctx.Author, true
	case "Date":
		return dateStr, true
	case "Revision":
		return ctx.Revision, true
	case "Source":
		return ctx.RCSPath, true
	case "State":
		return ctx.State, true
	case "RCSfile":
		return base + ",v", true
	case "Locker", "Name":
		return "", true
	case "Mdocdate":
		return ctx.Date.UTC().Format("January 2 2006"), true
	case "Log":
		return "", true
	default:
		if ctx.LocalID != "" && name == ctx.LocalID {
			return fmt.Sprintf("%s,v %s %s %s %s", base, ctx.Revision, dateStr, ctx.Author, ctx.State), true
		}
		return "", false
	}
}

// renderLog expands a "$Log$" occurrence into its header line plus one
// prefix-aligned line per line of the revision's log message.
func renderLog(prefix, suffix string, ctx Context) string {
	base := path.Base(ctx.Filename)
	var out strings.Builder
	out.WriteString(prefix + "$Log: " + base + ",v $" + suffix)

	dateStr := ctx.Date.UTC().Format("2006/01/02 15:04:05")
	out.WriteString(prefix + "Revision " + ctx.Revision + "  " + dateStr + "  " + ctx.Author + "\n")

	for _, logLine := range strings.Split(strings.TrimRight(ctx.Log, "\n"), "\n") {
		out.WriteString(prefix + logLine + "\n")
	}

	return out.String()
}

// splitKeepEnds splits s into lines, each retaining its trailing "\n".
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
