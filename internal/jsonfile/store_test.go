package jsonfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Replies map[string]string `json:"replies"`
}

func TestOpenMissingThenPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feature.json")
	s, err := Open[doc](path)
	if err != nil { t.Fatalf("Open: %v", err) }
	err = s.Update(func(d *doc) error {
		d.Replies = map[string]string{"42": "absent"}
		return nil
	})
	if err != nil { t.Fatalf("Update: %v", err) }

	again, err := Open[doc](path)
	if err != nil { t.Fatalf("reopen: %v", err) }
	var got string
	again.View(func(d doc) { got = d.Replies["42"] })
	if got != "absent" { t.Fatalf("expected persisted reply, got %q", got) }
}

func TestUpdateErrorSkipsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	s, _ := Open[doc](path)
	sentinel := errors.New("nope")
	if err := s.Update(func(d *doc) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should not exist after failed update")
	}
}

func TestOpenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feature.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil { t.Fatalf("write: %v", err) }
	if _, err := Open[doc](path); err == nil {
		t.Fatalf("expected decode error")
	}
}
