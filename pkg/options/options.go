// Package options resolves per-repository settings from the layered mirror
// option tree.
package options

// Options is one flat layer of settings.
type Options map[string]interface{}

// Keys holding nested override sections rather than settings.
const (
	keyDomains      = "domains"
	keyOwners       = "owners"
	keyRepositories = "repositories"
)

// Defaults are applied beneath every resolution.
func Defaults() Options {
	return Options{
		"n_retries":         3,
		"enabled":           true,
		"use_ssh":           false,
		"git":               "git",
		"git_commit_mailer": "git-commit-mailer",
		"mirrors_directory": "mirrors",
		"max_diff_size":     "1M",
		"git_timeout":       "10m",
		"notifier_timeout":  "10m",
		"lock_timeout":      "30m",
	}
}

// Merge returns base overlaid with layers left to right. No input is modified.
func Merge(base Options, layers ...Options) Options {
	size := len(base)
	for _, layer := range layers {
		size += len(layer)
	}
	out := make(Options, size)
	for key, value := range base {
		out[key] = value
	}
	for _, layer := range layers {
		for key, value := range layer {
			out[key] = value
		}
	}
	return out
}

// Global returns the top-level settings of tree.
func Global(tree map[string]interface{}) Options {
	return settings(tree)
}

// Layers returns the overrides that apply to domain/owner/repo, least
// specific first: owner, owner+repo, domain, domain+owner, domain+owner+repo.
// Missing sections yield empty layers.
func Layers(tree map[string]interface{}, domain, owner, repo string) []Options {
	ownerTree := child(tree, keyOwners, owner)
	domainTree := child(tree, keyDomains, domain)
	domainOwnerTree := child(domainTree, keyOwners, owner)

	return []Options{
		settings(ownerTree),
		settings(child(ownerTree, keyRepositories, repo)),
		settings(domainTree),
		settings(domainOwnerTree),
		settings(child(domainOwnerTree, keyRepositories, repo)),
	}
}

// Resolve computes the effective settings for one repository.
func Resolve(tree map[string]interface{}, domain, owner, repo string) Options {
	layers := append([]Options{Global(tree)}, Layers(tree, domain, owner, repo)...)
	return Merge(Defaults(), layers...)
}

func child(tree map[string]interface{}, section, name string) map[string]interface{} {
	if tree == nil || name == "" {
		return nil
	}
	entries, ok := asMap(tree[section])
	if !ok {
		return nil
	}
	node, _ := asMap(entries[name])
	return node
}

func settings(tree map[string]interface{}) Options {
	out := make(Options, len(tree))
	for key, value := range tree {
		switch key {
		case keyDomains, keyOwners, keyRepositories:
			continue
		}
		out[key] = value
	}
	return out
}

func asMap(value interface{}) (map[string]interface{}, bool) {
	switch typed := value.(type) {
	case map[string]interface{}:
		return typed, true
	case Options:
		return typed, true
	default:
		return nil, false
	}
}
