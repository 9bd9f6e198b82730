package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/lanes/pkg/object"
)

func TestCheckout_SwitchesBranch(t *testing.T) {
	r := newTestRepo(t)
	mainHead := commitWorktree(t, r, map[string]string{"shared.txt": "s\n", "main-only/x.txt": "x\n"})

	featureTree := buildModeTree(t, r, map[string]testFile{
		"shared.txt": {"s feature\n", object.TreeModeFile},
		"tool.sh":    {"#!/bin/sh\n", object.TreeModeExecutable},
	})
	feature := commitTestTree(t, r, featureTree, "feature", mainHead)
	if err := r.CreateBranch("feature", feature); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	head, err := r.Head()
	if err != nil || head != "refs/heads/feature" {
		t.Fatalf("Head = %q, %v", head, err)
	}

	data, err := os.ReadFile(filepath.Join(r.RootDir, "shared.txt"))
	if err != nil || string(data) != "s feature\n" {
		t.Errorf("shared.txt = %q, %v", data, err)
	}
	info, err := os.Stat(filepath.Join(r.RootDir, "tool.sh"))
	if err != nil {
		t.Fatalf("stat tool.sh: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("tool.sh mode = %v, want executable", info.Mode())
	}
	if _, err := os.Stat(filepath.Join(r.RootDir, "main-only")); !os.IsNotExist(err) {
		t.Errorf("main-only/ should be removed, stat err = %v", err)
	}

	changes, err := r.WorktreeChanges()
	if err != nil {
		t.Fatalf("WorktreeChanges: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("worktree dirty after checkout: %+v", changes)
	}

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.RootDir, "main-only", "x.txt")); err != nil {
		t.Errorf("main-only/x.txt not restored: %v", err)
	}
}

func TestCheckout_RefusesDirtyWorktree(t *testing.T) {
	r := newTestRepo(t)
	mainHead := commitWorktree(t, r, map[string]string{"a.txt": "a\n"})
	if err := r.CreateBranch("other", mainHead); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	writeWorktreeFile(t, r, "a.txt", "dirty\n")

	err := r.Checkout("other")
	if !errors.Is(err, ErrDirtyWorktree) {
		t.Fatalf("Checkout err = %v, want ErrDirtyWorktree", err)
	}
	head, _ := r.Head()
	if head != "refs/heads/main" {
		t.Errorf("HEAD moved to %q on refused checkout", head)
	}
}

func TestCheckoutTree_FileReplacesDirectory(t *testing.T) {
	r := newTestRepo(t)
	from := buildTestTree(t, r, map[string]string{"x/inner.txt": "dir\n"})
	to := buildTestTree(t, r, map[string]string{"x": "file\n"})
	writeWorktreeFile(t, r, "x/inner.txt", "dir\n")

	touched, err := r.CheckoutTree(from, to)
	if err != nil {
		t.Fatalf("CheckoutTree: %v", err)
	}
	if len(touched) != 2 || touched[0] != "x" || touched[1] != "x/inner.txt" {
		t.Errorf("touched = %v", touched)
	}
	data, err := os.ReadFile(filepath.Join(r.RootDir, "x"))
	if err != nil || string(data) != "file\n" {
		t.Errorf("x = %q, %v", data, err)
	}
}
