// Package alarm plays a short named sound when a task starts.
package alarm

import (
	"os"
	"os/exec"
	"path/filepath"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
)

// Player resolves sound names to wav files under a directory and plays
// them through aplay. Playback is fire-and-forget so the scheduler loop
// never blocks on audio.
type Player struct {
	soundDir string
	run      func(path string) error
}

func NewPlayer(soundDir string) *Player {
	return &Player{
		soundDir: soundDir,
		run: func(path string) error {
			return exec.Command("aplay", "-q", path).Run()
		},
	}
}

// Play triggers the named sound. Missing or failing sounds are logged,
// never fatal.
func (p *Player) Play(name string) {
	if name == "" {
		return
	}
	path := filepath.Join(p.soundDir, name+".wav")
	if _, err := os.Stat(path); err != nil {
		appLog.Warn("alarm sound not found", "name", name, "path", path)
		return
	}
	go func() {
		if err := p.run(path); err != nil {
			appLog.Warn("alarm playback failed", "name", name, "err", err)
		}
	}()
}
