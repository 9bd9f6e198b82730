package repo

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFile is the name of the per-repository ignore file at the worktree
// root.
const IgnoreFile = ".lanesignore"

// IgnoreChecker decides which worktree paths the change scanner skips.
type IgnoreChecker struct {
	rules []ignoreRule
}

type ignoreRule struct {
	negated  bool
	dirOnly  bool
	anchored bool // pattern contains a slash, so it matches the full path
	re       *regexp.Regexp
}

// NewIgnoreChecker creates an IgnoreChecker for the worktree at root. The
// metadata directory (and a .git directory, if any) is always ignored; rules
// from .lanesignore follow, last match wins.
func NewIgnoreChecker(root string) *IgnoreChecker {
	ic := &IgnoreChecker{}
	ic.add(DirName)
	ic.add(".git")

	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return ic
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ic.add(scanner.Text())
	}
	return ic
}

func (ic *IgnoreChecker) add(line string) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	var rule ignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return
	}
	rule.anchored = strings.Contains(line, "/")
	re, err := regexp.Compile(globToRegex(line))
	if err != nil {
		return
	}
	rule.re = re
	ic.rules = append(ic.rules, rule)
}

// IsIgnored reports whether the slash-separated relative path is ignored,
// either directly or because one of its parent directories is.
func (ic *IgnoreChecker) IsIgnored(path string) bool {
	path = filepath.ToSlash(path)
	for i := 0; i < len(path); i++ {
		if path[i] == '/' && ic.decide(path[:i], true) {
			return true
		}
	}
	return ic.decide(path, false)
}

// decide applies the rules to a single path. dir is true when path is known
// to be a directory; a leaf path may be one too, so dir-only rules still
// consider it.
func (ic *IgnoreChecker) decide(path string, dir bool) bool {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	ignored := false
	for _, rule := range ic.rules {
		if rule.dirOnly && !dir {
			continue
		}
		target := base
		if rule.anchored {
			target = path
		}
		if rule.re.MatchString(target) {
			ignored = !rule.negated
		}
	}
	return ignored
}

// globToRegex translates a gitignore-style glob. "**/" matches any number of
// leading directories, "*" and "?" never cross a slash.
func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		case ch == '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
