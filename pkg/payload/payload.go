// Package payload normalizes decoded GitHub and GitLab webhook bodies.
package payload

import (
	"fmt"
	"strings"
)

// Metadata holds the header-derived event names. At most one is set per request.
type Metadata struct {
	GitHubEvent string `json:"github_event,omitempty"`
	GitLabEvent string `json:"gitlab_event,omitempty"`
}

// Payload is a read-only view over one webhook body.
type Payload struct {
	data     map[string]interface{}
	metadata Metadata
	kind     Kind
}

// New classifies data once. A nil data tree is treated as empty.
func New(data map[string]interface{}, metadata Metadata) *Payload {
	if data == nil {
		data = map[string]interface{}{}
	}
	p := &Payload{data: data, metadata: metadata}
	p.kind = classify(p.IsFromGitLab(), p.EventName())
	return p
}

func (p *Payload) Metadata() Metadata { return p.metadata }

func (p *Payload) Kind() Kind { return p.kind }

// Raw returns the decoded body. Callers must not modify it.
func (p *Payload) Raw() map[string]interface{} { return p.data }

// IsFromGitLab is true iff the body has a top-level object_kind.
func (p *Payload) IsFromGitLab() bool {
	_, ok := p.data["object_kind"]
	return ok
}

// EventName is object_kind for GitLab bodies and the X-GitHub-Event header otherwise.
func (p *Payload) EventName() string {
	if p.IsFromGitLab() {
		return fmt.Sprint(p.data["object_kind"])
	}
	return p.metadata.GitHubEvent
}

// EventClass returns push, wikiPageChange-gollum, wikiPageChange-wiki_page, ping or unsupported.
func (p *Payload) EventClass() string {
	switch p.kind {
	case KindGitHubPush, KindGitLabPush:
		return "push"
	case KindGitHubWiki:
		return "wikiPageChange-" + EventGollum
	case KindGitLabWiki:
		return "wikiPageChange-" + EventWikiPage
	case KindPing:
		return "ping"
	default:
		return "unsupported"
	}
}

func (p *Payload) IsWiki() bool { return p.kind.IsWiki() }

// Get walks a dotted path through nested maps.
func (p *Payload) Get(path string) (interface{}, bool) {
	var current interface{} = p.data
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the value at path when it is a string.
func (p *Payload) String(path string) (string, bool) {
	value, ok := p.Get(path)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

func (p *Payload) Map(path string) (map[string]interface{}, bool) {
	value, ok := p.Get(path)
	if !ok {
		return nil, false
	}
	m, ok := value.(map[string]interface{})
	return m, ok
}

func (p *Payload) List(path string) ([]interface{}, bool) {
	value, ok := p.Get(path)
	if !ok {
		return nil, false
	}
	l, ok := value.([]interface{})
	return l, ok
}

// HTTPCloneURL returns the HTTPS clone URL for the event's repository.
func (p *Payload) HTTPCloneURL() (string, bool) {
	switch p.kind {
	case KindGitLabWiki:
		return p.String("wiki.git_http_url")
	case KindGitLabPush:
		return p.String("repository.git_http_url")
	case KindGitHubWiki:
		url, ok := p.githubHTTPURL()
		if !ok {
			return "", false
		}
		return wikiURL(url), true
	case KindGitHubPush:
		return p.githubHTTPURL()
	default:
		return "", false
	}
}

// SSHCloneURL returns the SSH clone URL for the event's repository.
func (p *Payload) SSHCloneURL() (string, bool) {
	switch p.kind {
	case KindGitLabWiki:
		return p.String("wiki.git_ssh_url")
	case KindGitLabPush:
		return p.String("repository.git_ssh_url")
	case KindGitHubWiki:
		url, ok := p.nonEmpty("repository.ssh_url")
		if !ok {
			return "", false
		}
		return wikiURL(url), true
	case KindGitHubPush:
		return p.nonEmpty("repository.ssh_url")
	default:
		return "", false
	}
}

// RepositoryURI is the URI the domain and owner are parsed from.
func (p *Payload) RepositoryURI() (string, bool) {
	if p.kind == KindGitLabWiki {
		return p.nonEmpty("wiki.git_ssh_url")
	}
	var keys []string
	if p.IsFromGitLab() {
		keys = []string{"repository.url", "repository.git_ssh_url", "repository.git_http_url"}
	} else {
		keys = []string{"repository.clone_url", "repository.url", "repository.ssh_url"}
	}
	for _, key := range keys {
		if value, ok := p.nonEmpty(key); ok {
			return value, true
		}
	}
	return "", false
}

// ProjectURI is the GitLab project web page handed to the notifier.
func (p *Payload) ProjectURI() (string, bool) {
	if value, ok := p.nonEmpty("repository.homepage"); ok {
		return value, true
	}
	return p.nonEmpty("project.web_url")
}

func (p *Payload) githubHTTPURL() (string, bool) {
	if url, ok := p.nonEmpty("repository.clone_url"); ok {
		return url, true
	}
	if url, ok := p.nonEmpty("repository.url"); ok {
		return url + ".git", true
	}
	return "", false
}

func (p *Payload) nonEmpty(path string) (string, bool) {
	value, ok := p.String(path)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func wikiURL(url string) string {
	if strings.HasSuffix(url, ".wiki.git") {
		return url
	}
	return strings.TrimSuffix(url, ".git") + ".wiki.git"
}
