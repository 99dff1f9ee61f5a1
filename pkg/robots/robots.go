package robots

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/sw33tLie/spotscope/internal/utils"
	"github.com/sw33tLie/spotscope/pkg/metrics"
	"github.com/sw33tLie/spotscope/pkg/verdict"
	"github.com/sw33tLie/spotscope/pkg/whttp"
)

const (
	NoteNotFound     = "robots.txt not found"
	NoteNoDirectives = "200 but no robots directives detected"
	NoteInvalidURL   = "invalid url"
)

// site is the per-netloc state kept for the whole run.
type site struct {
	robotsURL string
	status    int
	notes     string
	rules     *robotstxt.RobotsData
}

// Evaluator answers robots.txt questions, fetching each netloc's file at most once.
type Evaluator struct {
	client *whttp.Client
	agent  string

	mu    sync.RWMutex
	sites map[string]*site
	group singleflight.Group
}

// NewEvaluator evaluates rules for agent, "*" when empty.
func NewEvaluator(client *whttp.Client, agent string) *Evaluator {
	if strings.TrimSpace(agent) == "" {
		agent = "*"
	}
	return &Evaluator{
		client: client,
		agent:  agent,
		sites:  make(map[string]*site),
	}
}

// Evaluate classifies rawURL against its host's robots.txt. Only the path is matched; the query is ignored.
func (e *Evaluator) Evaluate(ctx context.Context, rawURL string) verdict.RobotsVerdict {
	v := e.evaluate(ctx, rawURL)
	metrics.RobotsVerdicts.WithLabelValues(string(v.CanFetch)).Inc()
	return v
}

func (e *Evaluator) evaluate(ctx context.Context, rawURL string) verdict.RobotsVerdict {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return verdict.RobotsVerdict{CanFetch: verdict.RobotsUnknown, Notes: NoteInvalidURL}
	}

	s := e.site(ctx, strings.ToLower(u.Scheme), strings.ToLower(u.Host))
	out := verdict.RobotsVerdict{
		RobotsURL:  s.robotsURL,
		HTTPStatus: s.status,
		CanFetch:   verdict.RobotsUnknown,
		Notes:      s.notes,
	}
	if s.rules == nil {
		return out
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if s.rules.FindGroup(e.agent).Test(path) {
		out.CanFetch = verdict.RobotsAllowed
	} else {
		out.CanFetch = verdict.RobotsBlocked
	}
	return out
}

func (e *Evaluator) site(ctx context.Context, scheme, netloc string) *site {
	key := scheme + "://" + netloc

	e.mu.RLock()
	s, ok := e.sites[key]
	e.mu.RUnlock()
	if ok {
		return s
	}

	v, _, _ := e.group.Do(key, func() (interface{}, error) {
		e.mu.RLock()
		cached, ok := e.sites[key]
		e.mu.RUnlock()
		if ok {
			return cached, nil
		}
		fetched := e.fetch(ctx, key+"/robots.txt")
		e.mu.Lock()
		e.sites[key] = fetched
		e.mu.Unlock()
		return fetched, nil
	})
	return v.(*site)
}

func (e *Evaluator) fetch(ctx context.Context, robotsURL string) *site {
	s := &site{robotsURL: robotsURL}

	res, err := e.client.Get(ctx, robotsURL)
	if err != nil {
		s.notes = "request error: " + whttp.ErrorClass(err)
		utils.Log.Debugf("[robots] %s: %v", robotsURL, err)
		return s
	}
	s.robotsURL = res.FinalURL
	s.status = res.StatusCode

	switch {
	case res.StatusCode == 404:
		s.notes = NoteNotFound
	case res.OK() && res.Body != "":
		if !strings.Contains(strings.ToLower(res.Body), "user-agent") {
			s.notes = NoteNoDirectives
			break
		}
		rules, err := robotstxt.FromBytes([]byte(escapeRulePaths(res.Body)))
		if err != nil {
			s.notes = "robots.txt parse error"
			utils.Log.Debugf("[robots] parsing %s: %v", robotsURL, err)
			break
		}
		s.rules = rules
	default:
		s.notes = fmt.Sprintf("robots.txt returned HTTP %d", res.StatusCode)
	}
	return s
}

// escapeRulePaths percent-encodes non-ASCII bytes in Allow and Disallow values so rules written
// in raw UTF-8 compare equal to escaped request paths.
func escapeRulePaths(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(line[:colon])) {
		case "allow", "disallow":
		default:
			continue
		}
		value := line[colon+1:]
		var b strings.Builder
		for j := 0; j < len(value); j++ {
			if c := value[j]; c >= utf8.RuneSelf {
				fmt.Fprintf(&b, "%%%02X", c)
			} else {
				b.WriteByte(c)
			}
		}
		lines[i] = line[:colon+1] + b.String()
	}
	return strings.Join(lines, "\n")
}
