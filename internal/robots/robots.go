// Package robots decides whether a page may be loaded for scanning
// according to its site's robots.txt.
package robots

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/fetch"
)

// ErrDisallowed is returned by Guard.Check for pages excluded by robots.txt.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Rules are the parsed groups of one robots.txt file.
type Rules struct {
	Groups []Group
	// DenyAll is set when the file could not be retrieved because of a
	// server error; the site is treated as fully disallowed.
	DenyAll bool
}

type Group struct {
	Agents   []string
	Allow    []string
	Disallow []string
}

// Guard fetches robots.txt once per origin through the shared fetch client,
// so its on-disk cache and retry policy apply.
type Guard struct {
	Fetch     *fetch.Client
	UserAgent string
	// Expiry bounds how long parsed rules are reused; zero means 30 minutes.
	Expiry time.Duration

	mu  sync.Mutex
	mem map[string]entry
	now func() time.Time
}

type entry struct {
	rules  Rules
	expiry time.Time
}

// Check returns ErrDisallowed when pageURL may not be loaded. Missing or
// unreadable robots files allow everything; a 5xx response denies the whole
// site.
func (g *Guard) Check(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil
	}
	rules := g.rules(ctx, scheme+"://"+u.Host)
	if rules.DenyAll {
		return fmt.Errorf("%s: %w", pageURL, ErrDisallowed)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if !rules.IsAllowed(g.UserAgent, path) {
		return fmt.Errorf("%s: %w", pageURL, ErrDisallowed)
	}
	return nil
}

func (g *Guard) rules(ctx context.Context, origin string) Rules {
	g.mu.Lock()
	if g.now == nil {
		g.now = time.Now
	}
	if g.mem == nil {
		g.mem = make(map[string]entry)
	}
	if e, ok := g.mem[origin]; ok && g.now().Before(e.expiry) {
		g.mu.Unlock()
		return e.rules
	}
	g.mu.Unlock()

	var rules Rules
	body, _, err := g.Fetch.GetAs(ctx, origin+"/robots.txt", nil)
	var se *fetch.StatusError
	switch {
	case err == nil:
		rules = Parse(string(body))
	case errors.As(err, &se) && se.Code >= 500:
		log.Warn().Int("status", se.Code).Str("origin", origin).Msg("robots.txt unavailable; denying site")
		rules = Rules{DenyAll: true}
	default:
		log.Debug().Err(err).Str("origin", origin).Msg("no robots.txt")
	}

	exp := g.Expiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	g.mu.Lock()
	g.mem[origin] = entry{rules: rules, expiry: g.now().Add(exp)}
	g.mu.Unlock()
	return rules
}

// Parse reads robots.txt text. Consecutive user-agent lines share a group;
// unknown directives are ignored.
func Parse(text string) Rules {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var groups []Group
	cur := Group{}
	flush := func() {
		if len(cur.Agents) == 0 && len(cur.Allow) == 0 && len(cur.Disallow) == 0 {
			return
		}
		groups = append(groups, cur)
		cur = Group{}
	}
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent", "useragent":
			if len(cur.Allow) > 0 || len(cur.Disallow) > 0 {
				flush()
			}
			cur.Agents = append(cur.Agents, strings.ToLower(val))
		case "allow":
			cur.Allow = append(cur.Allow, val)
		case "disallow":
			cur.Disallow = append(cur.Disallow, val)
		}
	}
	flush()
	return Rules{Groups: groups}
}

// IsAllowed applies the group that best matches userAgent: the longest
// agent token contained in it, with "*" as the fallback. Within that group
// the longest matching pattern wins and Allow wins ties. No match allows.
func (r Rules) IsAllowed(userAgent, path string) bool {
	if r.DenyAll {
		return false
	}
	idx := r.groupFor(userAgent)
	if idx < 0 {
		return true
	}
	grp := r.Groups[idx]
	best, allow := -1, true
	for _, p := range grp.Disallow {
		if p != "" && patternMatches(p, path) && specificity(p) > best {
			best, allow = specificity(p), false
		}
	}
	for _, p := range grp.Allow {
		if p != "" && patternMatches(p, path) && specificity(p) >= best {
			best, allow = specificity(p), true
		}
	}
	return allow
}

func (r Rules) groupFor(userAgent string) int {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	bestIdx, bestScore := -1, -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			score := -1
			switch {
			case a == "*":
				score = 0
			case a != "" && strings.Contains(ua, a):
				score = len(a)
			}
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
	}
	return bestIdx
}

// patternMatches anchors pattern at the start of path; '*' matches any run
// and a trailing '$' anchors the end.
func patternMatches(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	parts := strings.Split(strings.TrimSuffix(pattern, "$"), "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := "^" + strings.Join(parts, ".*")
	if anchored {
		expr += "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

func specificity(pattern string) int {
	return len(strings.ReplaceAll(strings.TrimSuffix(pattern, "$"), "*", ""))
}
