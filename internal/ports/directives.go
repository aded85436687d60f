package ports

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// namedDirectiveSet is the trivial DirectiveSet implementation backed by a
// TOML table name.
type namedDirectiveSet string

func (n namedDirectiveSet) Name() string { return string(n) }

// directivesFile is the on-disk shape of a directives TOML file: a list of
// rules, each a glob-style method-name pattern plus the directive set name
// to apply.
type directivesFile struct {
	Rules []struct {
		Pattern string `toml:"pattern"`
		Set     string `toml:"set"`
	} `toml:"rule"`
}

// FileDirectives is a DirectivesStack backed by a TOML file, hot-reloaded on
// write via fsnotify. spec.md leaves DirectivesStack's population
// unspecified (spec.md §6 only requires GetMatching be read-only); this is
// one concrete implementation, not a change to that requirement.
type FileDirectives struct {
	path string
	log  *slog.Logger

	mu    sync.RWMutex
	rules []compiledRule
}

type compiledRule struct {
	prefix string // pattern with trailing '*' stripped; "" matches everything
	set    namedDirectiveSet
}

// NewFileDirectives loads path and starts watching it for changes. Callers
// must call Close when done. If path does not exist, GetMatching returns nil
// for every method until the file is created.
func NewFileDirectives(ctx context.Context, path string, log *slog.Logger) (*FileDirectives, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fd := &FileDirectives{path: path, log: log}
	if err := fd.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := parentDir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go fd.watchLoop(ctx, watcher)
	return fd, nil
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

func (fd *FileDirectives) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() { _ = watcher.Close() }()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, fd.path) && event.Name != fd.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				if err := fd.reload(); err != nil {
					fd.log.Warn("directives: reload failed", "path", fd.path, "error", err)
				} else {
					fd.log.Info("directives: reloaded", "path", fd.path)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fd.log.Warn("directives: watcher error", "error", err)
		}
	}
}

func (fd *FileDirectives) reload() error {
	var parsed directivesFile
	if _, err := toml.DecodeFile(fd.path, &parsed); err != nil {
		return err
	}

	rules := make([]compiledRule, 0, len(parsed.Rules))
	for _, r := range parsed.Rules {
		rules = append(rules, compiledRule{
			prefix: strings.TrimSuffix(r.Pattern, "*"),
			set:    namedDirectiveSet(r.Set),
		})
	}

	fd.mu.Lock()
	fd.rules = rules
	fd.mu.Unlock()
	return nil
}

// GetMatching returns the first rule whose pattern prefix-matches the
// method's name, or nil if none match.
func (fd *FileDirectives) GetMatching(method MethodRef, _ string) DirectiveSet {
	fd.mu.RLock()
	defer fd.mu.RUnlock()

	name := method.Name()
	for _, r := range fd.rules {
		if strings.HasPrefix(name, r.prefix) {
			return r.set
		}
	}
	return nil
}
