package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAbsPath(t *testing.T) {
	p, err := AbsPath(".")
	if err != nil {
		t.Fatalf("failed to get abs path: %v", err)
	}
	if !filepath.IsAbs(p) {
		t.Errorf("expected absolute path, got %s", p)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "x.txt")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	exists, err := FileExists(f)
	if err != nil || !exists {
		t.Errorf("expected file to exist, got exists=%v err=%v", exists, err)
	}
	exists, err = FileExists(filepath.Join(dir, "missing.txt"))
	if err != nil || exists {
		t.Errorf("expected file to not exist, got exists=%v err=%v", exists, err)
	}
}

func TestStringInList(t *testing.T) {
	if !StringInList("b", []string{"a", "b", "c"}) {
		t.Error("expected b to be in list")
	}
	if StringInList("z", []string{"a", "b", "c"}) {
		t.Error("expected z to not be in list")
	}
}

func TestCreateIfNotExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	if err := CreateIfNotExists(dir, 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	exists, err := DirectoryExists(dir)
	if err != nil || !exists {
		t.Errorf("expected directory to exist, got exists=%v err=%v", exists, err)
	}
	// calling again is a no-op
	if err := CreateIfNotExists(dir, 0755); err != nil {
		t.Fatalf("expected no-op on existing directory, got %v", err)
	}
}
