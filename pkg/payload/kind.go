package payload

// Kind is the closed set of events the gateway understands.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPing
	KindGitHubPush
	KindGitHubWiki
	KindGitLabPush
	KindGitLabWiki
)

// Event names as sent by the providers.
const (
	EventPush     = "push"
	EventGollum   = "gollum"
	EventWikiPage = "wiki_page"
	EventPing     = "ping"
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindGitHubPush:
		return "github-push"
	case KindGitHubWiki:
		return "github-wiki"
	case KindGitLabPush:
		return "gitlab-push"
	case KindGitLabWiki:
		return "gitlab-wiki"
	default:
		return "unsupported"
	}
}

// IsWiki reports whether the event targets a wiki repository.
func (k Kind) IsWiki() bool {
	return k == KindGitHubWiki || k == KindGitLabWiki
}

// IsGitLab reports whether the kind came from the GitLab dialect.
func (k Kind) IsGitLab() bool {
	return k == KindGitLabPush || k == KindGitLabWiki
}

func classify(fromGitLab bool, event string) Kind {
	switch {
	case event == EventPing:
		return KindPing
	case fromGitLab && event == EventPush:
		return KindGitLabPush
	case fromGitLab && event == EventWikiPage:
		return KindGitLabWiki
	case !fromGitLab && event == EventPush:
		return KindGitHubPush
	case !fromGitLab && event == EventGollum:
		return KindGitHubWiki
	default:
		return KindUnsupported
	}
}
