package gateway

import (
	"fmt"

	"mirrorhooks/pkg/mirror"
	"mirrorhooks/pkg/payload"
)

// DefaultRef is reported for wiki changes, which carry no branch.
const DefaultRef = "refs/heads/master"

// ExtractChange derives the (before, after, ref) triple for p.
func ExtractChange(p *payload.Payload) (mirror.Change, error) {
	switch p.Kind() {
	case payload.KindGitHubPush, payload.KindGitLabPush:
		return pushChange(p)
	case payload.KindGitHubWiki:
		return gollumChange(p)
	case payload.KindGitLabWiki:
		// The wiki_page hook has no revision range.
		return mirror.Change{Before: "HEAD~", After: "HEAD", Ref: DefaultRef}, nil
	default:
		return mirror.Change{}, invalid("Unsupported event: <%s>", p.EventName())
	}
}

func pushChange(p *payload.Payload) (mirror.Change, error) {
	before, ok := scalar(p, "before")
	if !ok {
		return mirror.Change{}, invalid("before commit ID is missing")
	}
	after, ok := scalar(p, "after")
	if !ok {
		return mirror.Change{}, invalid("after commit ID is missing")
	}
	ref, ok := scalar(p, "ref")
	if !ok {
		return mirror.Change{}, invalid("reference is missing")
	}
	return mirror.Change{Before: before, After: after, Ref: ref}, nil
}

func gollumChange(p *payload.Payload) (mirror.Change, error) {
	raw, ok := p.Get("pages")
	if !ok || raw == nil {
		return mirror.Change{}, invalid("pages are missing")
	}
	pages, ok := raw.([]interface{})
	if !ok {
		return mirror.Change{}, invalid("invalid pages format: <%v>", raw)
	}
	if len(pages) == 0 {
		return mirror.Change{}, invalid("no pages")
	}

	revisions := make([]string, 0, len(pages))
	for _, page := range pages {
		entry, _ := page.(map[string]interface{})
		sha, _ := entry["sha"].(string)
		if sha == "" {
			return mirror.Change{}, invalid("page revision is missing: <%v>", page)
		}
		revisions = append(revisions, sha)
	}

	if len(revisions) == 1 {
		return mirror.Change{Before: revisions[0] + "^", After: revisions[0], Ref: DefaultRef}, nil
	}
	return mirror.Change{Before: revisions[0], After: revisions[len(revisions)-1], Ref: DefaultRef}, nil
}

func scalar(p *payload.Payload, key string) (string, bool) {
	value, ok := p.Get(key)
	if !ok || value == nil {
		return "", false
	}
	if s, isString := value.(string); isString {
		return s, true
	}
	return fmt.Sprint(value), true
}
