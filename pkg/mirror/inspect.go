package mirror

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// State summarizes a mirror on disk.
type State struct {
	Head     string
	RefCount int
}

// Inspect opens the bare mirror at path. An empty mirror has no Head.
func Inspect(path string) (State, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return State{}, fmt.Errorf("open mirror %s: %w", path, err)
	}

	var state State
	head, err := repo.Head()
	switch {
	case err == nil:
		state.Head = head.Hash().String()
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	default:
		return State{}, fmt.Errorf("read HEAD of %s: %w", path, err)
	}

	refs, err := repo.References()
	if err != nil {
		return state, fmt.Errorf("list refs of %s: %w", path, err)
	}
	defer refs.Close()
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name() != plumbing.HEAD {
			state.RefCount++
		}
		return nil
	})
	return state, err
}
