package pricing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type priceFile struct {
	Prices map[string]string `yaml:"prices"`
}

// LoadFile reads a YAML price table of the form:
//
//	prices:
//	  BTC: 10000
//	  DOGE: 0.1
func LoadFile(path string) (map[string]decimal.Decimal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price file: %w", err)
	}
	var pf priceFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse price file %s: %w", path, err)
	}
	if len(pf.Prices) == 0 {
		return nil, fmt.Errorf("price file %s: no prices", path)
	}
	out := make(map[string]decimal.Decimal, len(pf.Prices))
	for sym, raw := range pf.Prices {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("price file %s: %s: %w", path, sym, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("price file %s: %s must be positive", path, sym)
		}
		out[sym] = p
	}
	return out, nil
}

// FileWatcher reloads a Table whenever its YAML file changes. A file that
// fails to parse leaves the previous prices in place.
type FileWatcher struct {
	path    string
	table   *Table
	watcher *fsnotify.Watcher
	log     *zap.Logger

	// OnReload is called after every successful reload.
	OnReload func(symbols int)
}

// NewFileWatcher loads path into table and prepares a watcher for it.
func NewFileWatcher(path string, table *Table, log *zap.Logger) (*FileWatcher, error) {
	prices, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	table.Replace(prices)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch price file: %w", err)
	}
	return &FileWatcher{path: path, table: table, watcher: w, log: log}, nil
}

// Run processes file events until ctx is cancelled.
func (fw *FileWatcher) Run(ctx context.Context) {
	defer fw.watcher.Close()
	target := filepath.Clean(fw.path)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fw.reload()
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn("price file watcher error", zap.Error(err))
		}
	}
}

func (fw *FileWatcher) reload() {
	prices, err := LoadFile(fw.path)
	if err != nil {
		fw.log.Warn("price file reload failed, keeping previous prices", zap.Error(err))
		return
	}
	fw.table.Replace(prices)
	fw.log.Info("price file reloaded", zap.String("path", fw.path), zap.Int("symbols", len(prices)))
	if fw.OnReload != nil {
		fw.OnReload(len(prices))
	}
}
