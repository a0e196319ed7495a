package alarm

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPlayKnownSound(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bell.wav"), []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}

	played := make(chan string, 1)
	p := NewPlayer(dir)
	p.run = func(path string) error {
		played <- path
		return nil
	}

	p.Play("bell")
	select {
	case path := <-played:
		if filepath.Base(path) != "bell.wav" {
			t.Fatalf("played %q", path)
		}
	case <-time.After(time.Second):
		t.Fatal("sound never played")
	}
}

func TestPlayMissingSoundIsQuiet(t *testing.T) {
	p := NewPlayer(t.TempDir())
	called := false
	p.run = func(string) error {
		called = true
		return nil
	}

	p.Play("ghost")
	p.Play("")
	if called {
		t.Fatal("missing sound reached the player")
	}
}
