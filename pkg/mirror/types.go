package mirror

import (
	"fmt"
	"strings"
)

// Target identifies one upstream repository.
type Target struct {
	Domain string `json:"domain"`
	Owner  string `json:"owner"`
	Name   string `json:"name"`
}

func (t Target) String() string {
	return t.Domain + "/" + t.Owner + "/" + t.Name
}

// Validate checks that every field is a usable path component. Owner may
// hold several segments for nested GitLab groups.
func (t Target) Validate() error {
	switch {
	case t.Domain == "":
		return fmt.Errorf("mirror target domain is empty")
	case t.Owner == "":
		return fmt.Errorf("mirror target owner is empty")
	case t.Name == "":
		return fmt.Errorf("mirror target name is empty")
	}
	if !pathSegment(t.Domain) {
		return fmt.Errorf("mirror target domain is invalid: <%s>", t.Domain)
	}
	for _, segment := range strings.Split(t.Owner, "/") {
		if !pathSegment(segment) {
			return fmt.Errorf("mirror target owner is invalid: <%s>", t.Owner)
		}
	}
	if !pathSegment(t.Name) {
		return fmt.Errorf("mirror target name is invalid: <%s>", t.Name)
	}
	return nil
}

func pathSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00")
}

// Change is the (before, after, ref) triple handed to the notifier.
type Change struct {
	Before string `json:"before"`
	After  string `json:"after"`
	Ref    string `json:"ref"`
}

func (c Change) String() string {
	return c.Before + " " + c.After + " " + c.Ref
}

// Operation is the git step a sync performed.
type Operation string

const (
	OperationClone Operation = "clone"
	OperationFetch Operation = "fetch"
)

// SyncResult describes a finished clone or fetch.
type SyncResult struct {
	Operation Operation
	Attempts  int
	Path      string
}
