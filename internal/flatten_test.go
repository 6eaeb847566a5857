package internal

import "testing"

// TestFlattenNestedAndArray tests that a nested map with an array is flattened correctly.
func TestFlattenNestedAndArray(t *testing.T) {
	input := map[string]interface{}{
		"repository": map[string]interface{}{
			"name": "widgets",
			"owner": map[string]interface{}{
				"login": "acme",
			},
		},
		"pages": []interface{}{
			map[string]interface{}{"sha": "aaa"},
			map[string]interface{}{"sha": "bbb"},
		},
	}

	flat := Flatten(input)
	if flat["repository.name"] != "widgets" {
		t.Fatalf("expected repository.name, got %v", flat["repository.name"])
	}
	if flat["repository.owner.login"] != "acme" {
		t.Fatalf("expected repository.owner.login, got %v", flat["repository.owner.login"])
	}
	if _, ok := flat["pages"].([]interface{}); !ok {
		t.Fatalf("expected pages list to be kept")
	}
	if flat["pages[0].sha"] != "aaa" || flat["pages[1].sha"] != "bbb" {
		t.Fatalf("unexpected page entries: %v %v", flat["pages[0].sha"], flat["pages[1].sha"])
	}
}
