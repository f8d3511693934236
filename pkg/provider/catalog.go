package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Application is one entry of the catalog, loaded from {name}.json.
type Application struct {
	Display  string `json:"display"`
	Audience string `json:"audience"`
}

// Catalog maps application names to definitions. A directory-backed
// catalog reloads itself when files change.
type Catalog struct {
	mu   sync.RWMutex
	apps map[string]*Application

	dir     string
	log     *zap.SugaredLogger
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	// reloaded is signalled after each reload; used by tests
	reloaded chan struct{}
}

func NewStaticCatalog(apps map[string]*Application) *Catalog {
	if apps == nil {
		apps = make(map[string]*Application)
	}
	return &Catalog{apps: apps}
}

// LoadCatalog reads every regular *.json file in dir and keeps watching
// it. Call Close to stop watching.
func LoadCatalog(
	dir string,
	log *zap.SugaredLogger,
) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	apps, err := loadApplications(dir, log)
	if err != nil {
		return nil, err
	}
	c := &Catalog{
		apps:     apps,
		dir:      dir,
		log:      log,
		done:     make(chan struct{}),
		reloaded: make(chan struct{}, 1),
	}
	if err := c.watch(); err != nil {
		return nil, fmt.Errorf("failed to start catalog watcher: %w", err)
	}
	log.Infow("loaded application catalog", "dir", dir, "count", len(apps))
	return c, nil
}

func (c *Catalog) Get(name string) (*Application, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if app, ok := c.apps[name]; ok {
		return app, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, name)
}

func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.apps))
	for name := range c.apps {
		names = append(names, name)
	}
	return names
}

// Put adds or replaces an application in memory.
func (c *Catalog) Put(name string, app *Application) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps[name] = app
}

// Reloaded fires after the watcher reloads the directory.
func (c *Catalog) Reloaded() <-chan struct{} { return c.reloaded }

func (c *Catalog) Close() error {
	if c.watcher == nil {
		return nil
	}
	close(c.done)
	err := c.watcher.Close()
	c.wg.Wait()
	return err
}

func (c *Catalog) reload() {
	apps, err := loadApplications(c.dir, c.log)
	if err != nil {
		c.log.Warnw("catalog reload failed, keeping previous definitions", "error", err)
		return
	}
	c.mu.Lock()
	c.apps = apps
	c.mu.Unlock()
	c.log.Infow("reloaded application catalog", "dir", c.dir, "count", len(apps))

	select {
	case c.reloaded <- struct{}{}:
	default:
	}
}

func (c *Catalog) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(c.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	c.watcher = watcher

	reload := make(chan struct{}, 1)
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.scheduleReload(reload)
	}()
	go func() {
		defer c.wg.Done()
		c.handleWatcher(reload)
	}()
	return nil
}

func (c *Catalog) handleWatcher(reload chan<- struct{}) {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warnw("catalog watcher error", "error", err)
		}
	}
}

// scheduleReload debounces bursts of events into one reload.
func (c *Catalog) scheduleReload(reload <-chan struct{}) {
	var timer *time.Timer
	var fire <-chan time.Time
	const debounce = 200 * time.Millisecond
	for {
		select {
		case <-c.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-reload:
			if timer != nil {
				timer.Reset(debounce)
			} else {
				timer = time.NewTimer(debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			timer = nil
			c.reload()
		}
	}
}

func loadApplications(
	dir string,
	log *zap.SugaredLogger,
) (map[string]*Application, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog dir '%s': %w", dir, err)
	}

	apps := make(map[string]*Application)
	for _, file := range files {
		if !file.Type().IsRegular() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ".json")
		app, err := loadApplication(filepath.Join(dir, file.Name()))
		if err != nil {
			log.Warnw("skipping application definition", "name", name, "error", err)
			continue
		}
		apps[name] = app
	}
	return apps, nil
}

func loadApplication(path string) (*Application, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read application definition: %w", err)
	}
	app := &Application{}
	if err := json.Unmarshal(content, app); err != nil {
		return nil, fmt.Errorf("failed to parse json of '%s': %w", path, err)
	}
	if app.Audience == "" {
		return nil, fmt.Errorf("application '%s' has no audience", path)
	}
	return app, nil
}
