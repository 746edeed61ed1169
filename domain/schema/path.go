package schema

import (
	"fmt"
	"strings"
)

// Step is one segment of a resolved path: a node name plus optional
// list-key predicates selecting a particular entry.
type Step struct {
	Name string
	Keys map[string]string
}

// ParsePath splits an absolute slash-delimited path into steps.
// Segments may carry list-key predicates: interfaces/interface[name='eth0'].
// Leading and trailing slashes are tolerated; empty segments are not.
func ParsePath(path string) ([]Step, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("empty path")
	}

	var steps []Step
	for _, seg := range splitSegments(trimmed) {
		step, err := parseSegment(seg)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// SchemaPath strips predicates from a path, yielding the schema node path.
func SchemaPath(steps []Step) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return strings.Join(names, "/")
}

// splitSegments splits on slashes that are not inside a predicate.
func splitSegments(path string) []string {
	var segs []string
	depth := 0
	start := 0
	inQuote := false
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '\'':
			inQuote = !inQuote
		case '[':
			if !inQuote {
				depth++
			}
		case ']':
			if !inQuote && depth > 0 {
				depth--
			}
		case '/':
			if depth == 0 && !inQuote {
				segs = append(segs, path[start:i])
				start = i + 1
			}
		}
	}
	segs = append(segs, path[start:])
	return segs
}

func parseSegment(seg string) (Step, error) {
	if seg == "" {
		return Step{}, fmt.Errorf("empty path segment")
	}

	bracket := strings.IndexByte(seg, '[')
	if bracket < 0 {
		if strings.IndexByte(seg, ']') >= 0 {
			return Step{}, fmt.Errorf("unbalanced bracket in segment %q", seg)
		}
		return Step{Name: seg}, nil
	}

	name := seg[:bracket]
	if name == "" {
		return Step{}, fmt.Errorf("segment %q has predicate but no name", seg)
	}

	step := Step{Name: name, Keys: make(map[string]string)}
	rest := seg[bracket:]
	for rest != "" {
		if rest[0] != '[' {
			return Step{}, fmt.Errorf("malformed predicate in segment %q", seg)
		}
		end := closingBracket(rest)
		if end < 0 {
			return Step{}, fmt.Errorf("unterminated predicate in segment %q", seg)
		}
		key, value, err := parsePredicate(rest[1:end])
		if err != nil {
			return Step{}, fmt.Errorf("segment %q: %w", seg, err)
		}
		if _, dup := step.Keys[key]; dup {
			return Step{}, fmt.Errorf("segment %q repeats key %q", seg, key)
		}
		step.Keys[key] = value
		rest = rest[end+1:]
	}
	return step, nil
}

// closingBracket returns the index of the predicate's closing bracket,
// skipping any bracket inside the quoted value, or -1 if unterminated.
func closingBracket(s string) int {
	inQuote := false
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case ']':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// parsePredicate parses key='value' inside a bracket pair.
func parsePredicate(pred string) (string, string, error) {
	eq := strings.IndexByte(pred, '=')
	if eq <= 0 {
		return "", "", fmt.Errorf("malformed predicate %q", pred)
	}
	key := pred[:eq]
	val := pred[eq+1:]
	if len(val) < 2 || val[0] != '\'' || val[len(val)-1] != '\'' {
		return "", "", fmt.Errorf("predicate value in %q must be single-quoted", pred)
	}
	return key, val[1 : len(val)-1], nil
}
