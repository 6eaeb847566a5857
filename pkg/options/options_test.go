package options

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const treeYAML = `
to: ops@example.com
n_retries: 5
owners:
  acme:
    enabled: false
    from: owner@example.com
    repositories:
      widgets:
        sender: repo@example.com
domains:
  example.com:
    use_ssh: true
    owners:
      acme:
        from: domain-owner@example.com
        repositories:
          widgets:
            enabled: true
`

func loadTree(t *testing.T, doc string) map[string]interface{} {
	t.Helper()
	var tree map[string]interface{}
	if err := yaml.Unmarshal([]byte(doc), &tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	return tree
}

// TestMergeIsPureAndLaterWins tests override precedence without touching inputs.
func TestMergeIsPureAndLaterWins(t *testing.T) {
	base := Options{"a": 1, "b": 1}
	first := Options{"b": 2, "c": 2}
	second := Options{"c": 3}

	merged := Merge(base, first, second)

	if merged["a"] != 1 || merged["b"] != 2 || merged["c"] != 3 {
		t.Fatalf("unexpected merge result: %v", merged)
	}
	if base["b"] != 1 || len(base) != 2 {
		t.Fatalf("base was modified: %v", base)
	}
	if first["c"] != 2 {
		t.Fatalf("layer was modified: %v", first)
	}
}

// TestResolveMostSpecificWins tests that domain+owner+repo overrides an owner-level enabled:false.
func TestResolveMostSpecificWins(t *testing.T) {
	tree := loadTree(t, treeYAML)

	opts := Resolve(tree, "example.com", "acme", "widgets")
	if opts["enabled"] != true {
		t.Fatalf("expected enabled true, got %v", opts["enabled"])
	}
	if opts["from"] != "domain-owner@example.com" {
		t.Fatalf("expected domain+owner from, got %v", opts["from"])
	}
	if opts["sender"] != "repo@example.com" {
		t.Fatalf("expected owner+repo sender, got %v", opts["sender"])
	}
	if opts["use_ssh"] != true {
		t.Fatalf("expected domain use_ssh, got %v", opts["use_ssh"])
	}
	if opts["n_retries"] != 5 {
		t.Fatalf("expected global n_retries, got %v", opts["n_retries"])
	}
	if opts["git"] != "git" {
		t.Fatalf("expected default git, got %v", opts["git"])
	}
	for _, key := range []string{"owners", "domains", "repositories"} {
		if _, ok := opts[key]; ok {
			t.Fatalf("expected %s to be stripped", key)
		}
	}
}

func TestResolveOtherTargets(t *testing.T) {
	tree := loadTree(t, treeYAML)

	other := Resolve(tree, "github.com", "acme", "gadgets")
	if other["enabled"] != false {
		t.Fatalf("expected owner-level enabled false, got %v", other["enabled"])
	}
	if other["use_ssh"] != false {
		t.Fatalf("expected default use_ssh outside example.com, got %v", other["use_ssh"])
	}

	stranger := Resolve(tree, "github.com", "someone", "thing")
	if stranger["enabled"] != true || stranger["to"] != "ops@example.com" {
		t.Fatalf("expected global settings, got %v", stranger)
	}
}

func TestLayersOrder(t *testing.T) {
	tree := map[string]interface{}{
		"owners": map[string]interface{}{
			"o": map[string]interface{}{
				"k": "owner",
				"repositories": map[string]interface{}{
					"r": map[string]interface{}{"k": "owner+repo"},
				},
			},
		},
		"domains": map[string]interface{}{
			"d": map[string]interface{}{
				"k": "domain",
				"owners": map[string]interface{}{
					"o": map[string]interface{}{
						"k": "domain+owner",
						"repositories": map[string]interface{}{
							"r": map[string]interface{}{"k": "domain+owner+repo"},
						},
					},
				},
			},
		},
	}

	layers := Layers(tree, "d", "o", "r")
	want := []string{"owner", "owner+repo", "domain", "domain+owner", "domain+owner+repo"}
	if len(layers) != len(want) {
		t.Fatalf("expected %d layers, got %d", len(want), len(layers))
	}
	for i, layer := range layers {
		if layer["k"] != want[i] {
			t.Fatalf("layer %d: expected %q, got %v", i, want[i], layer["k"])
		}
	}
}

func TestLayersIgnoreMalformedSections(t *testing.T) {
	tree := map[string]interface{}{
		"owners":  []interface{}{"acme"},
		"domains": map[string]interface{}{"example.com": "oops"},
	}
	for i, layer := range Layers(tree, "example.com", "acme", "widgets") {
		if len(layer) != 0 {
			t.Fatalf("layer %d: expected empty layer, got %v", i, layer)
		}
	}
}

// TestDecodeCoercesScalars tests the typed view of resolved options.
func TestDecodeCoercesScalars(t *testing.T) {
	opts := Merge(Defaults(), Options{
		"to":               "ops@example.com",
		"error_to":         []interface{}{"errors@example.com"},
		"n_retries":        float64(2),
		"commit_email":     "/usr/local/bin/mailer",
		"sleep_per_mail":   1,
		"send_per_to":      true,
		"notifier_timeout": 30,
		"unknown":          "ignored",
	})

	settings, err := Decode(opts)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(settings.To) != 1 || settings.To[0] != "ops@example.com" {
		t.Fatalf("expected single recipient list, got %v", settings.To)
	}
	if len(settings.ErrorTo) != 1 {
		t.Fatalf("unexpected error_to: %v", settings.ErrorTo)
	}
	if settings.NRetries != 2 {
		t.Fatalf("expected 2 retries, got %d", settings.NRetries)
	}
	if settings.GitCommitMailer != "/usr/local/bin/mailer" {
		t.Fatalf("expected commit_email alias, got %q", settings.GitCommitMailer)
	}
	if settings.SleepPerMail != "1" {
		t.Fatalf("expected sleep_per_mail string, got %q", settings.SleepPerMail)
	}
	if !settings.Enabled || settings.UseSSH || !settings.SendPerTo {
		t.Fatalf("unexpected flags: %+v", settings)
	}
	if settings.GitTimeout != 10*time.Minute {
		t.Fatalf("expected default git timeout, got %v", settings.GitTimeout)
	}
	if settings.NotifierTimeout != 30*time.Second {
		t.Fatalf("expected numeric seconds, got %v", settings.NotifierTimeout)
	}
	if settings.MaxDiffSize != "1M" {
		t.Fatalf("expected default max diff size, got %q", settings.MaxDiffSize)
	}
}

func TestDecodeRejectsWrongShape(t *testing.T) {
	if _, err := Decode(Options{"n_retries": map[string]interface{}{"x": 1}}); err == nil {
		t.Fatalf("expected error for map-valued n_retries")
	}
}
