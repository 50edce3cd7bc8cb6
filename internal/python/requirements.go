// Package python drives pip for the documentation environment and understands
// the requirement manifests it is fed.
package python

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Requirement is one package line of a pip requirements file.
type Requirement struct {
	Name      string   // as written
	Extras    []string // e.g. [dev]
	Specifier string   // version constraint, e.g. ">=5,<8"
	Marker    string   // environment marker after ';'
	URL       string   // direct reference after '@'
	Source    string   // file the line came from
	Line      int
}

// NormalizedName returns the PEP 503 form of the package name.
func (r Requirement) NormalizedName() string { return Normalize(r.Name) }

var (
	separatorRun    = regexp.MustCompile(`[-_.]+`)
	directReference = regexp.MustCompile(`^[A-Za-z0-9._-]+\s*(?:\[[^\]]*\])?\s*@`)
	nameLine        = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*(?:\[([^\]]*)\])?\s*(.*)$`)
)

// Normalize lowercases name and collapses runs of "-", "_" and "." to "-".
func Normalize(name string) string {
	return separatorRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ParseFile reads a requirements file, following -r/--requirement includes
// relative to the including file. Editable and bare URL/path lines carry no
// package name and are skipped.
func ParseFile(path string) ([]Requirement, error) {
	return parseFile(path, map[string]bool{})
}

func parseFile(path string, seen map[string]bool) ([]Requirement, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if seen[abs] {
		return nil, fmt.Errorf("requirements include cycle at %s", path)
	}
	seen[abs] = true
	defer delete(seen, abs)

	f, err := os.Open(filepath.Clean(abs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []Requirement
	err = scanLines(f, func(line string, lineNo int) error {
		if include, ok := includeTarget(line); ok {
			if !filepath.IsAbs(include) {
				include = filepath.Join(filepath.Dir(abs), include)
			}
			nested, err := parseFile(include, seen)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			out = append(out, nested...)
			return nil
		}
		req, ok, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if ok {
			req.Source = path
			req.Line = lineNo
			out = append(out, req)
		}
		return nil
	})
	return out, err
}

// Parse reads requirement lines from r. Include directives are rejected
// since there is no file to resolve them against.
func Parse(r io.Reader) ([]Requirement, error) {
	var out []Requirement
	err := scanLines(r, func(line string, lineNo int) error {
		if _, ok := includeTarget(line); ok {
			return fmt.Errorf("line %d: includes are only supported in files", lineNo)
		}
		req, ok, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			req.Line = lineNo
			out = append(out, req)
		}
		return nil
	})
	return out, err
}

// Names returns the distinct normalized package names in order of first appearance.
func Names(reqs []Requirement) []string {
	seen := make(map[string]bool, len(reqs))
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		n := r.NormalizedName()
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names
}

// scanLines joins backslash continuations, strips comments and calls fn with
// each non-empty logical line and the number of its first physical line.
func scanLines(r io.Reader, fn func(line string, lineNo int) error) error {
	sc := bufio.NewScanner(r)
	var (
		buf   strings.Builder
		start int
		n     int
	)
	flush := func() error {
		line := strings.TrimSpace(stripComment(buf.String()))
		buf.Reset()
		if line == "" {
			return nil
		}
		return fn(line, start)
	}
	for sc.Scan() {
		n++
		raw := sc.Text()
		if buf.Len() == 0 {
			start = n
		}
		if strings.HasSuffix(raw, `\`) {
			buf.WriteString(strings.TrimSuffix(raw, `\`))
			buf.WriteByte(' ')
			continue
		}
		buf.WriteString(raw)
		if err := flush(); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return flush()
}

func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}

func includeTarget(line string) (string, bool) {
	for _, opt := range []string{"--requirement", "-r"} {
		if !strings.HasPrefix(line, opt) {
			continue
		}
		rest := line[len(opt):]
		switch {
		case strings.HasPrefix(rest, "="):
			rest = rest[1:]
		case strings.HasPrefix(rest, " "), strings.HasPrefix(rest, "\t"):
		case opt == "-r" && rest != "": // -rdocs.txt
		default:
			continue
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest, true
		}
	}
	return "", false
}

func parseLine(line string) (Requirement, bool, error) {
	if strings.HasPrefix(line, "-") {
		// -e/--editable, -c constraints, index and find-links options
		return Requirement{}, false, nil
	}
	if (strings.Contains(line, "://") && !directReference.MatchString(line)) ||
		strings.HasPrefix(line, ".") || strings.HasPrefix(line, "/") {
		return Requirement{}, false, nil
	}
	if i := strings.Index(line, " --"); i >= 0 {
		line = strings.TrimSpace(line[:i]) // per-requirement options such as --hash
	}

	m := nameLine.FindStringSubmatch(line)
	if m == nil {
		return Requirement{}, false, fmt.Errorf("invalid requirement %q", line)
	}
	req := Requirement{Name: m[1]}
	if m[2] != "" {
		for _, e := range strings.Split(m[2], ",") {
			if e = strings.TrimSpace(e); e != "" {
				req.Extras = append(req.Extras, e)
			}
		}
	}
	rest := strings.TrimSpace(m[3])
	if i := strings.Index(rest, ";"); i >= 0 {
		req.Marker = strings.TrimSpace(rest[i+1:])
		rest = strings.TrimSpace(rest[:i])
	}
	if strings.HasPrefix(rest, "@") {
		req.URL = strings.TrimSpace(rest[1:])
		return req, true, nil
	}
	req.Specifier = strings.ReplaceAll(rest, " ", "")
	return req, true, nil
}
