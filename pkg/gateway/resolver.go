package gateway

import (
	"fmt"

	"mirrorhooks/internal"
	"mirrorhooks/pkg/mirror"
	"mirrorhooks/pkg/options"
	"mirrorhooks/pkg/payload"
)

// Disposition is what the gateway does with a resolved repository.
type Disposition int

const (
	DispositionEnabled Disposition = iota
	// DispositionDisabled means enabled: false.
	DispositionDisabled
	// DispositionUntargeted means the name matched none of targets.
	DispositionUntargeted
	// DispositionFiltered means the when expression did not hold.
	DispositionFiltered
)

func (d Disposition) String() string {
	switch d {
	case DispositionEnabled:
		return "enabled"
	case DispositionDisabled:
		return "disabled"
	case DispositionUntargeted:
		return "untargeted"
	case DispositionFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Resolution is a fully identified repository and whether to process it.
type Resolution struct {
	Target      mirror.Target
	Repository  *mirror.Repository
	Disposition Disposition
	Reason      string
}

// Resolver maps payloads to mirror repositories using the option tree.
type Resolver struct {
	tree       map[string]interface{}
	rules      *internal.RuleCache
	mirrorOpts []mirror.Option
}

func NewResolver(tree map[string]interface{}, opts ...mirror.Option) *Resolver {
	if tree == nil {
		tree = map[string]interface{}{}
	}
	return &Resolver{tree: tree, rules: internal.NewRuleCache(), mirrorOpts: opts}
}

// Resolve identifies the repository p refers to. Malformed payloads, and
// enabled repositories that could never be cloned, yield a *ValidationError;
// an enabled repository without recipients yields mirror.ErrRecipientMissing.
func (r *Resolver) Resolve(p *payload.Payload) (*Resolution, error) {
	switch p.Kind() {
	case payload.KindGitHubPush, payload.KindGitHubWiki, payload.KindGitLabPush:
		return r.resolveRepository(p)
	case payload.KindGitLabWiki:
		return r.resolveGitLabWiki(p)
	default:
		return nil, invalid("Unsupported event: <%s>", p.EventName())
	}
}

func (r *Resolver) resolveRepository(p *payload.Payload) (*Resolution, error) {
	raw, ok := p.Get("repository")
	if !ok || raw == nil {
		return nil, invalid("repository information is missing")
	}
	repository, ok := raw.(map[string]interface{})
	if !ok {
		return nil, invalid("invalid repository information format: <%v>", raw)
	}

	uri, _ := p.RepositoryURI()
	domain, ok := extractDomain(uri)
	if !ok {
		return nil, invalid("invalid repository URI: <%v>", repository)
	}
	name, _ := p.String("repository.name")
	if name == "" {
		return nil, invalid("repository name is missing: <%v>", repository)
	}
	owner, ok := ownerName(p, uri)
	if !ok {
		return nil, invalid("repository owner or owner name is missing: <%v>", repository)
	}
	return r.build(p, mirror.Target{Domain: domain, Owner: owner, Name: name})
}

func (r *Resolver) resolveGitLabWiki(p *payload.Payload) (*Resolution, error) {
	raw, ok := p.Get("wiki")
	if !ok || raw == nil {
		return nil, invalid("Wiki information is missing")
	}
	wiki, ok := raw.(map[string]interface{})
	if !ok {
		return nil, invalid("invalid Wiki information format: <%v>", raw)
	}

	uri, _ := p.RepositoryURI()
	domain, ok := extractDomain(uri)
	if !ok {
		return nil, invalid("invalid repository URI: <%v>", wiki)
	}
	project, ok := p.Map("project")
	if !ok {
		return nil, invalid("Project information is missing")
	}
	name, _ := project["name"].(string)
	if name == "" {
		return nil, invalid("repository name is missing: <%v>", project)
	}
	owner, ok := extractNamespace(uri)
	if !ok {
		return nil, invalid("repository owner or owner name is missing: <%v>", project)
	}
	return r.build(p, mirror.Target{Domain: domain, Owner: owner, Name: name})
}

func ownerName(p *payload.Payload, uri string) (string, bool) {
	if p.IsFromGitLab() {
		return extractNamespace(uri)
	}
	for _, key := range []string{"repository.owner.name", "repository.owner.login"} {
		if owner, ok := p.String(key); ok && owner != "" {
			return owner, true
		}
	}
	return "", false
}

func (r *Resolver) build(p *payload.Payload, target mirror.Target) (*Resolution, error) {
	if err := target.Validate(); err != nil {
		return nil, invalid("invalid repository path: %v", err)
	}
	opts := options.Resolve(r.tree, target.Domain, target.Owner, target.Name)
	repo, err := mirror.New(target, p, opts, r.mirrorOpts...)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Target: target, Repository: repo, Disposition: DispositionEnabled}
	label := fmt.Sprintf("<%q>:<%q>", target.Owner, target.Name)

	if !repo.Enabled() {
		res.Disposition = DispositionDisabled
		res.Reason = "ignore disabled repository: " + label
		return res, nil
	}
	if !repo.Targeted() {
		res.Disposition = DispositionUntargeted
		res.Reason = "ignore untargeted repository: " + label
		return res, nil
	}
	if when := repo.Settings().When; when != "" {
		matched, err := r.evaluate(when, p, target)
		if err != nil {
			res.Disposition = DispositionFiltered
			res.Reason = fmt.Sprintf("ignore repository %s: %v", label, err)
			return res, nil
		}
		if !matched {
			res.Disposition = DispositionFiltered
			res.Reason = "ignore filtered repository: " + label
			return res, nil
		}
	}
	if _, err := repo.Recipients(); err != nil {
		return nil, err
	}
	if _, err := repo.CloneURL(); err != nil {
		return nil, invalid("%v", err)
	}
	if _, err := repo.MirrorPath(); err != nil {
		return nil, invalid("%v", err)
	}
	return res, nil
}

func (r *Resolver) evaluate(expression string, p *payload.Payload, target mirror.Target) (bool, error) {
	rule, err := r.rules.Compile(expression)
	if err != nil {
		return false, err
	}
	return rule.Match(p.Raw(), map[string]interface{}{
		"event":  p.EventName(),
		"domain": target.Domain,
		"owner":  target.Owner,
		"name":   target.Name,
	})
}
