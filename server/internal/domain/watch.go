package domain

import (
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听内容目录，文件变化时触发 Library.Reload。
// 只对 *.json 生效，100ms 内的重复事件合并（编辑器保存经常连写多次）。
type Watcher struct {
	watcher *fsnotify.Watcher
	library *Library
	logger  *log.Logger
	closeCh chan struct{}
	once    sync.Once
}

func NewWatcher(library *Library, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(library.dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		library: library,
		logger:  logger,
		closeCh: make(chan struct{}),
	}
	go w.run()
	logger.Printf("[Domain] 👀 内容热更新已开启: dir=%s", library.dir)
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isContentFile(event.Name) {
				continue
			}
			now := time.Now()
			if t, seen := last[event.Name]; seen && now.Sub(t) < 100*time.Millisecond {
				continue
			}
			last[event.Name] = now

			if err := w.library.Reload(); err != nil {
				// 加载失败保留旧内容，等内容修好后的下一次事件。
				w.logger.Printf("[Domain] ⚠️  热更新失败，保留旧内容: %v", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("[Domain] ❌ 文件监听错误: %v", err)
		case <-w.closeCh:
			return
		}
	}
}

func isContentFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}
