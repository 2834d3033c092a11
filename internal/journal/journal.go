// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/mochibot/kokoro/internal/diary"
)

// commitAuthor identifies archive commits
const (
	commitAuthor = "kokoro"
	commitEmail  = "kokoro@localhost"
)

// Journal archives diary entries as markdown files in a local git
// repository, one commit per entry.
type Journal struct {
	Path string

	mu   sync.Mutex
	repo *git.Repository
}

// Open opens the journal repository at path, initializing it on first use
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	repo, err := git.PlainOpen(path)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(path, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal repository: %w", err)
	}

	return &Journal{Path: path, repo: repo}, nil
}

// entryRelPath places each entry under entries/<date>/<entry-id>.md
func entryRelPath(entry *diary.Entry) string {
	return filepath.Join("entries", entry.Timestamp.Format("2006-01-02"), entry.ID+".md")
}

// Append writes one entry and commits it
func (j *Journal) Append(entry *diary.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rendered, err := RenderMarkdown(entry)
	if err != nil {
		return err
	}

	relPath := entryRelPath(entry)
	absPath := filepath.Join(j.Path, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}
	if err := os.WriteFile(absPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write entry file: %w", err)
	}

	worktree, err := j.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add(relPath); err != nil {
		return fmt.Errorf("failed to add entry file: %w", err)
	}

	message := fmt.Sprintf("diary: %s (%s)", entry.EventName, entry.Timestamp.Format("2006-01-02"))
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthor,
			Email: commitEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}

	return nil
}

// Read loads one archived entry by its original timestamp and id
func (j *Journal) Read(entry *diary.Entry) (*diary.Entry, error) {
	data, err := os.ReadFile(filepath.Join(j.Path, entryRelPath(entry)))
	if err != nil {
		return nil, fmt.Errorf("failed to read archived entry: %w", err)
	}
	return ParseMarkdown(string(data))
}

// History returns the archive's commit messages, newest first
func (j *Journal) History(limit int) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	head, err := j.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	iter, err := j.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}
	defer iter.Close()

	var messages []string
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(messages) >= limit {
			return storer.ErrStop
		}
		messages = append(messages, c.Message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
