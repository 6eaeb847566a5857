package payload

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return data
}

// TestGitLabEventClassIgnoresGitHubHeader tests that object_kind decides the event class.
func TestGitLabEventClassIgnoresGitHubHeader(t *testing.T) {
	p := New(decode(t, `{"object_kind":"wiki_page"}`), Metadata{GitHubEvent: "push"})
	if !p.IsFromGitLab() {
		t.Fatalf("expected gitlab payload")
	}
	if p.EventName() != "wiki_page" {
		t.Fatalf("expected event name wiki_page, got %q", p.EventName())
	}
	if p.EventClass() != "wikiPageChange-wiki_page" {
		t.Fatalf("unexpected class %q", p.EventClass())
	}
	if p.Kind() != KindGitLabWiki {
		t.Fatalf("unexpected kind %v", p.Kind())
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		body   string
		header string
		kind   Kind
		class  string
	}{
		{`{}`, "push", KindGitHubPush, "push"},
		{`{}`, "gollum", KindGitHubWiki, "wikiPageChange-gollum"},
		{`{}`, "ping", KindPing, "ping"},
		{`{}`, "issues", KindUnsupported, "unsupported"},
		{`{}`, "", KindUnsupported, "unsupported"},
		{`{"object_kind":"push"}`, "", KindGitLabPush, "push"},
		{`{"object_kind":"tag_push"}`, "", KindUnsupported, "unsupported"},
		{`{"object_kind":"gollum"}`, "", KindUnsupported, "unsupported"},
	}
	for _, tc := range cases {
		p := New(decode(t, tc.body), Metadata{GitHubEvent: tc.header})
		if p.Kind() != tc.kind {
			t.Fatalf("%s/%s: expected kind %v, got %v", tc.body, tc.header, tc.kind, p.Kind())
		}
		if p.EventClass() != tc.class {
			t.Fatalf("%s/%s: expected class %q, got %q", tc.body, tc.header, tc.class, p.EventClass())
		}
	}
}

// TestGetNeverPanics tests dotted lookups over missing and non-map intermediates.
func TestGetNeverPanics(t *testing.T) {
	p := New(decode(t, `{"repository":{"name":"widgets","owner":{"login":"acme"}},"ref":"refs/heads/main"}`), Metadata{})

	if value, ok := p.String("repository.owner.login"); !ok || value != "acme" {
		t.Fatalf("expected acme, got %q %v", value, ok)
	}
	for _, path := range []string{"missing", "repository.missing.name", "ref.anything", "repository.name.x", ""} {
		if _, ok := p.Get(path); ok {
			t.Fatalf("expected %q to be absent", path)
		}
	}
	if _, ok := p.Map("repository.owner"); !ok {
		t.Fatalf("expected repository.owner map")
	}
	if _, ok := p.List("repository"); ok {
		t.Fatalf("expected repository not to be a list")
	}
}

func TestNilData(t *testing.T) {
	p := New(nil, Metadata{GitHubEvent: "push"})
	if _, ok := p.Get("repository"); ok {
		t.Fatalf("expected empty payload")
	}
	if _, ok := p.HTTPCloneURL(); ok {
		t.Fatalf("expected no clone url")
	}
}

func TestGitHubCloneURLs(t *testing.T) {
	body := `{"repository":{
		"clone_url":"https://github.com/acme/widgets.git",
		"ssh_url":"git@github.com:acme/widgets.git",
		"url":"https://github.com/acme/widgets"}}`

	push := New(decode(t, body), Metadata{GitHubEvent: "push"})
	if url, _ := push.HTTPCloneURL(); url != "https://github.com/acme/widgets.git" {
		t.Fatalf("unexpected push http url %q", url)
	}
	if url, _ := push.SSHCloneURL(); url != "git@github.com:acme/widgets.git" {
		t.Fatalf("unexpected push ssh url %q", url)
	}

	wiki := New(decode(t, body), Metadata{GitHubEvent: "gollum"})
	if url, _ := wiki.HTTPCloneURL(); url != "https://github.com/acme/widgets.wiki.git" {
		t.Fatalf("unexpected wiki http url %q", url)
	}
	if url, _ := wiki.SSHCloneURL(); url != "git@github.com:acme/widgets.wiki.git" {
		t.Fatalf("unexpected wiki ssh url %q", url)
	}
	if !wiki.IsWiki() || push.IsWiki() {
		t.Fatalf("unexpected wiki flags")
	}
}

func TestGitHubCloneURLFallbacks(t *testing.T) {
	push := New(decode(t, `{"repository":{"url":"https://github.com/acme/widgets"}}`), Metadata{GitHubEvent: "push"})
	if url, _ := push.HTTPCloneURL(); url != "https://github.com/acme/widgets.git" {
		t.Fatalf("expected url + .git fallback, got %q", url)
	}

	wiki := New(decode(t, `{"repository":{"clone_url":"https://example.com/acme/widgets"}}`), Metadata{GitHubEvent: "gollum"})
	if url, _ := wiki.HTTPCloneURL(); url != "https://example.com/acme/widgets.wiki.git" {
		t.Fatalf("expected .wiki.git to be appended, got %q", url)
	}
}

func TestGitLabCloneURLs(t *testing.T) {
	push := New(decode(t, `{
		"object_kind":"push",
		"repository":{
			"url":"git@gitlab.example.com:group/widgets.git",
			"homepage":"https://gitlab.example.com/group/widgets",
			"git_http_url":"https://gitlab.example.com/group/widgets.git",
			"git_ssh_url":"git@gitlab.example.com:group/widgets.git"}}`), Metadata{GitLabEvent: "Push Hook"})

	if url, _ := push.HTTPCloneURL(); url != "https://gitlab.example.com/group/widgets.git" {
		t.Fatalf("unexpected http url %q", url)
	}
	if url, _ := push.SSHCloneURL(); url != "git@gitlab.example.com:group/widgets.git" {
		t.Fatalf("unexpected ssh url %q", url)
	}
	if uri, _ := push.RepositoryURI(); uri != "git@gitlab.example.com:group/widgets.git" {
		t.Fatalf("unexpected repository uri %q", uri)
	}
	if uri, _ := push.ProjectURI(); uri != "https://gitlab.example.com/group/widgets" {
		t.Fatalf("unexpected project uri %q", uri)
	}

	wiki := New(decode(t, `{
		"object_kind":"wiki_page",
		"project":{"name":"widgets","web_url":"https://gitlab.example.com/group/widgets"},
		"wiki":{
			"git_http_url":"https://gitlab.example.com/group/widgets.wiki.git",
			"git_ssh_url":"git@gitlab.example.com:group/widgets.wiki.git"}}`), Metadata{GitLabEvent: "Wiki Page Hook"})

	if url, _ := wiki.HTTPCloneURL(); url != "https://gitlab.example.com/group/widgets.wiki.git" {
		t.Fatalf("unexpected wiki http url %q", url)
	}
	if uri, _ := wiki.RepositoryURI(); uri != "git@gitlab.example.com:group/widgets.wiki.git" {
		t.Fatalf("unexpected wiki uri %q", uri)
	}
	if uri, _ := wiki.ProjectURI(); uri != "https://gitlab.example.com/group/widgets" {
		t.Fatalf("unexpected wiki project uri %q", uri)
	}
}
