package main

import (
	"reflect"
	"testing"

	"github.com/odvcencio/lanes/pkg/apply"
	"github.com/odvcencio/lanes/pkg/diff"
	"github.com/odvcencio/lanes/pkg/repo"
	"github.com/odvcencio/lanes/pkg/workspace"
)

func TestParseHunkArg(t *testing.T) {
	tests := []struct {
		arg     string
		path    string
		header  diff.HunkHeader
		wantErr bool
	}{
		{arg: "a.txt:-1,6+1,6", path: "a.txt", header: diff.HunkHeader{OldStart: 1, OldLines: 6, NewStart: 1, NewLines: 6}},
		{arg: "dir/b.go:-0,0 +1,3", path: "dir/b.go", header: diff.HunkHeader{OldStart: 0, OldLines: 0, NewStart: 1, NewLines: 3}},
		{arg: "./c.txt:@@ -4,2 +4,0 @@", path: "c.txt", header: diff.HunkHeader{OldStart: 4, OldLines: 2, NewStart: 4, NewLines: 0}},
		{arg: "weird:name.txt:-2+2", path: "weird:name.txt", header: diff.HunkHeader{OldStart: 2, OldLines: 1, NewStart: 2, NewLines: 1}},
		{arg: "no-header", wantErr: true},
		{arg: ":-1,1+1,1", wantErr: true},
		{arg: "a.txt:1,1+1,1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			path, header, err := parseHunkArg(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseHunkArg(%q) = %q, %v; want error", tt.arg, path, header)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseHunkArg(%q): %v", tt.arg, err)
			}
			if path != tt.path || header != tt.header {
				t.Fatalf("parseHunkArg(%q) = %q, %+v; want %q, %+v", tt.arg, path, header, tt.path, tt.header)
			}
		})
	}
}

func TestBuildSpecs(t *testing.T) {
	changes := []repo.WorktreeChange{
		{Path: "a.txt"},
		{Path: "new.txt", PreviousPath: "old.txt"},
		{Path: "z.txt"},
	}

	all, err := buildSpecs(changes, nil, nil)
	if err != nil {
		t.Fatalf("buildSpecs: %v", err)
	}
	wantAll := []apply.DiffSpec{{Path: "a.txt"}, {PreviousPath: "old.txt", Path: "new.txt"}, {Path: "z.txt"}}
	if !reflect.DeepEqual(all, wantAll) {
		t.Fatalf("buildSpecs(all) = %+v, want %+v", all, wantAll)
	}

	got, err := buildSpecs(changes, []string{"new.txt"}, []string{"z.txt:-9,1+9,1", "z.txt:-3,1+3,1"})
	if err != nil {
		t.Fatalf("buildSpecs: %v", err)
	}
	want := []apply.DiffSpec{
		{PreviousPath: "old.txt", Path: "new.txt"},
		{Path: "z.txt", HunkHeaders: []diff.HunkHeader{
			{OldStart: 9, OldLines: 1, NewStart: 9, NewLines: 1},
			{OldStart: 3, OldLines: 1, NewStart: 3, NewLines: 1},
		}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildSpecs = %+v, want %+v", got, want)
	}

	if _, err := buildSpecs(changes, []string{"a.txt"}, []string{"a.txt:-1,1+1,1"}); err == nil {
		t.Fatal("expected error when a path is both whole and hunked")
	}
}

func TestParseStackArg(t *testing.T) {
	tests := []struct {
		arg     string
		want    workspace.Stack
		wantErr bool
	}{
		{arg: "feat", want: workspace.Stack{Name: "feat", Segments: []workspace.Segment{{RefName: "refs/heads/feat"}}}},
		{arg: "refs/heads/x", want: workspace.Stack{Name: "x", Segments: []workspace.Segment{{RefName: "refs/heads/x"}}}},
		{arg: "auth=auth-base,auth-ui", want: workspace.Stack{Name: "auth", Segments: []workspace.Segment{
			{RefName: "refs/heads/auth-base"},
			{RefName: "refs/heads/auth-ui"},
		}}},
		{arg: "=feat", wantErr: true},
		{arg: "s=a,,b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseStackArg(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseStackArg(%q) = %+v; want error", tt.arg, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStackArg(%q): %v", tt.arg, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parseStackArg(%q) = %+v, want %+v", tt.arg, got, tt.want)
			}
		})
	}
}
