package executor

import (
	"regexp"
	"sort"
	"strings"

	"execoj/internal/execution/model"
)

var (
	loopLine        = regexp.MustCompile(`^\s*(for|while)\b`)
	braceLoop       = regexp.MustCompile(`\b(for|while)\b`)
	funcDefs        = regexp.MustCompile(`(?m)(?:\bdef|\bfunc|\bfn|\bfunction)\s+(\w+)\s*\(|^[ \t]*(?:[\w:<>\*&]+[ \t]+)+\*?(\w+)[ \t]*\([^;{}\n]*\)[ \t]*(?:const)?[ \t]*\{?[ \t]*$`)
	classDefs       = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|abstract|final|export)[ \t]+)*(?:class|struct|interface)[ \t]+(\w+)(?:[ \t]*\(([\w \t,.]*)\))?(?:[ \t]*:[ \t]*(?:(?:public|private|protected)[ \t]+)?(\w+))?(?:[ \t]+extends[ \t]+(\w+))?(?:[ \t]+implements[ \t]+([\w \t,]+?))?[ \t]*[:{]?[ \t]*$`)
	methodDefs      = regexp.MustCompile(`(?m)^[ \t]+(?:def[ \t]+\w+[ \t]*\(|(?:(?:public|private|protected|static|final|virtual|override)[ \t]+)*[\w<>\[\]]+[ \t]+\w+[ \t]*\([^;\n]*\)[ \t]*(?:const[ \t]*)?\{)`)
	controlKeywords = []string{"if", "for", "while", "switch", "catch", "return"}
)

func isIndentLanguage(lang model.Language) bool {
	return lang == model.LanguagePython
}

// loopDepth estimates the maximum nesting of loops.
func loopDepth(code string, lang model.Language) int {
	if isIndentLanguage(lang) {
		return indentLoopDepth(code)
	}
	return braceLoopDepth(code)
}

func indentLoopDepth(code string) int {
	var stack []int
	deepest := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		indent := leadingSpace(line)
		for len(stack) > 0 && stack[len(stack)-1] >= indent {
			stack = stack[:len(stack)-1]
		}
		if loopLine.MatchString(line) {
			stack = append(stack, indent)
			if len(stack) > deepest {
				deepest = len(stack)
			}
		}
	}
	return deepest
}

func braceLoopDepth(code string) int {
	var stack []bool
	loops, deepest := 0, 0
	pending := false
	for _, line := range strings.Split(code, "\n") {
		if braceLoop.MatchString(line) {
			pending = true
		}
		for _, r := range line {
			switch r {
			case '{':
				stack = append(stack, pending)
				if pending {
					loops++
					if loops > deepest {
						deepest = loops
					}
				}
				pending = false
			case '}':
				if n := len(stack); n > 0 {
					if stack[n-1] {
						loops--
					}
					stack = stack[:n-1]
				}
			}
		}
	}
	return deepest
}

// functionNames lists functions defined in code, in order of appearance.
func functionNames(code string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range funcDefs.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name == "" || seen[name] || isControlKeyword(name) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func isControlKeyword(s string) bool {
	for _, k := range controlKeywords {
		if s == k {
			return true
		}
	}
	return false
}

// recursiveFunctions returns functions whose body calls themselves.
func recursiveFunctions(code string, lang model.Language) []string {
	var out []string
	for _, name := range functionNames(code) {
		call := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`)
		loc := call.FindStringIndex(code)
		if loc == nil {
			continue
		}
		if call.MatchString(functionBody(code, loc[0], lang)) {
			out = append(out, name)
		}
	}
	return out
}

// functionBody extracts the body of the definition starting at offset at.
func functionBody(code string, at int, lang model.Language) string {
	if isIndentLanguage(lang) {
		lineStart := strings.LastIndex(code[:at], "\n") + 1
		indent := leadingSpace(code[lineStart:])
		nl := strings.IndexByte(code[at:], '\n')
		if nl < 0 {
			return ""
		}
		var b strings.Builder
		for _, line := range strings.Split(code[at+nl+1:], "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if leadingSpace(line) <= indent {
				break
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		return b.String()
	}
	open := strings.IndexByte(code[at:], '{')
	if open < 0 {
		return ""
	}
	start := at + open
	depth := 0
	for i := start; i < len(code); i++ {
		switch code[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return code[start+1 : i]
			}
		}
	}
	return code[start+1:]
}

func leadingSpace(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// complexityClass maps loop nesting and recursion onto a coarse class.
func complexityClass(depth int, recursive bool) string {
	switch {
	case recursive && depth == 0:
		return "O(2^n)"
	case recursive:
		return "O(n log n)"
	case depth == 0:
		return "O(1)"
	case depth == 1:
		return "O(n)"
	case depth == 2:
		return "O(n^2)"
	default:
		return "O(n^k)"
	}
}

type classInfo struct {
	Name       string   `json:"name"`
	Extends    []string `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
}

func classes(code string) []classInfo {
	var out []classInfo
	for _, m := range classDefs.FindAllStringSubmatch(code, -1) {
		ci := classInfo{Name: m[1]}
		for _, parent := range append(splitList(m[2]), m[3], m[4]) {
			if parent != "" && parent != "object" {
				ci.Extends = append(ci.Extends, parent)
			}
		}
		ci.Implements = splitList(m[5])
		out = append(out, ci)
	}
	return out
}

func inheritanceDepth(list []classInfo) int {
	parents := make(map[string][]string, len(list))
	for _, c := range list {
		parents[c.Name] = c.Extends
	}
	var depth func(name string, seen map[string]bool) int
	depth = func(name string, seen map[string]bool) int {
		if seen[name] {
			return 0
		}
		seen[name] = true
		best := 0
		for _, p := range parents[name] {
			if _, known := parents[p]; known {
				if d := 1 + depth(p, seen); d > best {
					best = d
				}
			}
		}
		delete(seen, name)
		return best
	}
	deepest := 0
	for _, c := range list {
		if d := depth(c.Name, map[string]bool{}); d > deepest {
			deepest = d
		}
	}
	return deepest
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// countMatches counts occurrences of every pattern, keyed by label.
func countMatches(code string, patterns map[string]*regexp.Regexp) map[string]int {
	out := make(map[string]int)
	for label, re := range patterns {
		if n := len(re.FindAllStringIndex(code, -1)); n > 0 {
			out[label] = n
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
