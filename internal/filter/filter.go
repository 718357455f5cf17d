// Package filter implements the RIC allow/deny and regex allow/deny
// evaluation that sits between the upstream protocol engine and the
// dispatcher's queue.
package filter

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/g4klx/dapnetgateway/internal/paging"
)

// Filter holds the four configurable lists; any of them may be empty.
type Filter struct {
	RICAllow   map[uint32]struct{}
	RICDeny    map[uint32]struct{}
	RegexDeny  []*regexp.Regexp
	RegexAllow []*regexp.Regexp
}

// New builds a Filter from RIC lists and already-compiled regex lists.
func New(ricAllow, ricDeny []uint32, regexDeny, regexAllow []*regexp.Regexp) *Filter {
	f := &Filter{
		RICAllow:   make(map[uint32]struct{}, len(ricAllow)),
		RICDeny:    make(map[uint32]struct{}, len(ricDeny)),
		RegexDeny:  regexDeny,
		RegexAllow: regexAllow,
	}
	for _, r := range ricAllow {
		f.RICAllow[r] = struct{}{}
	}
	for _, r := range ricDeny {
		f.RICDeny[r] = struct{}{}
	}
	return f
}

// Accept evaluates the strict five-step order and returns
// whether the message should be queued, plus a short reason for logging
// when it is dropped.
func (f *Filter) Accept(msg paging.Message) (bool, string) {
	if len(f.RICAllow) > 0 {
		if _, ok := f.RICAllow[msg.RIC]; !ok {
			return false, "RIC not in whitelist"
		}
	}

	if _, ok := f.RICDeny[msg.RIC]; ok {
		return false, "RIC blacklist match"
	}

	body := string(msg.Body)
	for _, re := range f.RegexDeny {
		if re.MatchString(body) {
			return false, fmt.Sprintf("blacklist regex match: %s", re.String())
		}
	}

	if len(f.RegexAllow) > 0 {
		matched := false
		for _, re := range f.RegexAllow {
			if re.MatchString(body) {
				matched = true
				break
			}
		}
		if !matched {
			return false, "no whitelist regex match"
		}
	}

	return true, ""
}

// anchor wraps a raw pattern so Go's regexp.MatchString (which is a
// "search", not a "match") only accepts whole-body matches. A pattern
// that already anchors itself is left alone.
func anchor(pattern string) string {
	if strings.HasPrefix(pattern, "^") && strings.HasSuffix(pattern, "$") {
		return pattern
	}
	return "^(?:" + pattern + ")$"
}

// LoadPatterns reads a regex file: one pattern per line, lines starting
// with '#' are comments, blank lines are skipped. Patterns that fail to
// compile are logged and skipped; the rest of the file still loads.
func LoadPatterns(path string) ([]*regexp.Regexp, error) {
	if path == "" {
		return nil, nil
	}

	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(fp)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		re, err := regexp.Compile(anchor(line))
		if err != nil {
			log.Warnf("error in regex %q (%v), skipping", line, err)
			continue
		}
		patterns = append(patterns, re)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	log.Infof("Loaded %d regex patterns from file %s", len(patterns), path)
	return patterns, nil
}
