package search

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Chunk is one indexable unit of source: a function, method, class or
// interface, or the whole file when nothing else was recognized.
type Chunk struct {
	ID         string
	File       string
	StartLine  int // 1-based, inclusive
	EndLine    int
	Kind       string // function, method, class, interface, file
	Name       string // qualified for methods, e.g. Parser.parse
	Params     []string
	ReturnType string
	Extends    string
	Doc        string
	Calls      []string
	Content    string
}

var (
	functionRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(([^)]*)\)\s*(?::\s*([^{]+?))?\s*\{`)
	arrowRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s+)?\(([^)]*)\)\s*(?::\s*([^=]+?))?\s*=>`)
	funcExprRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?function\s*\*?\s*\(([^)]*)\)`)
	classRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([A-Za-z_$][\w$.]*))?`)
	ifaceRe    = regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([A-Za-z_$][\w$.,\s]*?))?\s*\{`)
	methodRe   = regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|readonly|override|async|get|set)\s+)*\*?\s*([A-Za-z_$][\w$]*)\s*\(([^)]*)\)\s*(?::\s*([^{]+?))?\s*\{`)
	callRe     = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\(`)
)

// Keywords that the method and call patterns would otherwise pick up.
var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true, "typeof": true, "new": true,
	"do": true, "else": true, "try": true, "await": true, "yield": true,
}

const maxCallsPerChunk = 12

// Parse extracts symbol chunks from JavaScript or TypeScript source. The
// scan is line-based and deliberately approximate: brace counting ignores
// braces inside strings, the same trade-off the execution classifier makes.
func Parse(path string, src []byte) []Chunk {
	lines := strings.Split(string(src), "\n")

	var chunks []Chunk
	var pendingDoc []string
	inDoc := false

	// Class context so methods get qualified names.
	className := ""
	classEnd := -1

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if inDoc {
			if idx := strings.Index(trimmed, "*/"); idx >= 0 {
				inDoc = false
			} else {
				pendingDoc = append(pendingDoc, cleanDocLine(trimmed))
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/**") {
			rest := strings.TrimPrefix(trimmed, "/**")
			if idx := strings.Index(rest, "*/"); idx >= 0 {
				pendingDoc = []string{strings.TrimSpace(rest[:idx])}
			} else {
				pendingDoc = []string{strings.TrimSpace(rest)}
				inDoc = true
			}
			continue
		}

		if i > classEnd {
			className = ""
		}

		if m := classRe.FindStringSubmatch(line); m != nil {
			end := blockEnd(lines, i)
			chunks = append(chunks, Chunk{
				File:      path,
				StartLine: i + 1,
				EndLine:   end + 1,
				Kind:      "class",
				Name:      m[1],
				Extends:   m[2],
				Doc:       takeDoc(&pendingDoc),
				Content:   strings.Join(lines[i:end+1], "\n"),
			})
			className = m[1]
			classEnd = end
			continue // keep scanning inside for methods
		}

		if m := ifaceRe.FindStringSubmatch(line); m != nil {
			end := blockEnd(lines, i)
			chunks = append(chunks, Chunk{
				File:      path,
				StartLine: i + 1,
				EndLine:   end + 1,
				Kind:      "interface",
				Name:      m[1],
				Extends:   strings.TrimSpace(m[2]),
				Doc:       takeDoc(&pendingDoc),
				Content:   strings.Join(lines[i:end+1], "\n"),
			})
			i = end
			continue
		}

		if m := firstMatch(line, functionRe, funcExprRe, arrowRe); m != nil {
			end := blockEnd(lines, i)
			body := strings.Join(lines[i:end+1], "\n")
			chunks = append(chunks, Chunk{
				File:       path,
				StartLine:  i + 1,
				EndLine:    end + 1,
				Kind:       "function",
				Name:       m[1],
				Params:     splitParams(m[2]),
				ReturnType: strings.TrimSpace(m[3]),
				Doc:        takeDoc(&pendingDoc),
				Calls:      extractCalls(body, m[1]),
				Content:    body,
			})
			i = end
			continue
		}

		if className != "" && i <= classEnd {
			if m := methodRe.FindStringSubmatch(line); m != nil && !jsKeywords[m[1]] {
				end := blockEnd(lines, i)
				if end > classEnd {
					end = classEnd
				}
				body := strings.Join(lines[i:end+1], "\n")
				chunks = append(chunks, Chunk{
					File:       path,
					StartLine:  i + 1,
					EndLine:    end + 1,
					Kind:       "method",
					Name:       className + "." + m[1],
					Params:     splitParams(m[2]),
					ReturnType: strings.TrimSpace(m[3]),
					Doc:        takeDoc(&pendingDoc),
					Calls:      extractCalls(body, m[1]),
					Content:    body,
				})
				i = end
				continue
			}
		}

		// Any other code line invalidates a dangling doc comment
		if trimmed != "" && !strings.HasPrefix(trimmed, "//") {
			pendingDoc = nil
		}
	}

	if len(chunks) == 0 && strings.TrimSpace(string(src)) != "" {
		chunks = append(chunks, Chunk{
			File:      path,
			StartLine: 1,
			EndLine:   len(lines),
			Kind:      "file",
			Name:      filepath.Base(path),
			Content:   string(src),
		})
	}

	for i := range chunks {
		chunks[i].ID = chunkID(path, i)
	}
	return chunks
}

func chunkID(path string, i int) string {
	return path + "#" + strconv.Itoa(i)
}

func firstMatch(line string, res ...*regexp.Regexp) []string {
	for _, re := range res {
		if m := re.FindStringSubmatch(line); m != nil {
			return m
		}
	}
	return nil
}

// blockEnd returns the index of the line that closes the block opened on the
// start line. A declaration without a brace on its own line (an expression
// arrow, or Allman style) counts as a single-line chunk; an unbalanced block
// runs to the end of the file.
func blockEnd(lines []string, start int) int {
	if !strings.Contains(lines[start], "{") {
		return start
	}
	depth := 0
	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if depth <= 0 {
			return i
		}
	}
	return len(lines) - 1
}

func splitParams(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	depth := 0
	cur := strings.Builder{}
	for _, r := range raw {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				if p := strings.TrimSpace(cur.String()); p != "" {
					out = append(out, p)
				}
				cur.Reset()
				continue
			}
		}
		cur.WriteRune(r)
	}
	if p := strings.TrimSpace(cur.String()); p != "" {
		out = append(out, p)
	}
	return out
}

func extractCalls(body, self string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range callRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if name == self || jsKeywords[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if len(out) >= maxCallsPerChunk {
			break
		}
	}
	return out
}

func cleanDocLine(line string) string {
	line = strings.TrimPrefix(strings.TrimSpace(line), "*")
	return strings.TrimSpace(line)
}

func takeDoc(pending *[]string) string {
	if len(*pending) == 0 {
		return ""
	}
	var parts []string
	for _, l := range *pending {
		if l != "" {
			parts = append(parts, l)
		}
	}
	*pending = nil
	return strings.Join(parts, " ")
}
