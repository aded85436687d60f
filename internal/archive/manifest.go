package archive

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Manifest is the human-readable sidecar written next to a binary dump. It
// is purely additive: Restore never reads it, so a missing or stale
// manifest.toml never blocks restore.
type Manifest struct {
	Magic       uint32    `toml:"magic"`
	Version     uint32    `toml:"version"`
	Klasses     int       `toml:"klasses"`
	Methods     int       `toml:"methods"`
	ScheduleLen int       `toml:"schedule_len"`
	CreatedAt   time.Time `toml:"created_at"`
}

func manifestPath(dumpPath string) string {
	return dumpPath + ".manifest.toml"
}

func writeManifest(dumpPath string, klasses, methods, scheduleLen int) error {
	m := Manifest{
		Magic:       Magic,
		Version:     Version,
		Klasses:     klasses,
		Methods:     methods,
		ScheduleLen: scheduleLen,
		CreatedAt:   time.Now().UTC(),
	}
	f, err := os.Create(manifestPath(dumpPath))
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(m)
}

// ReadManifest loads the sidecar for inspection (e.g. cmd/jitcorectl's
// `archive stat` command). Not required for Restore.
func ReadManifest(dumpPath string) (Manifest, error) {
	var m Manifest
	_, err := toml.DecodeFile(manifestPath(dumpPath), &m)
	return m, err
}
