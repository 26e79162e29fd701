// broadcast/broadcast.go
package broadcast

import (
	"sync"

	"github.com/wfunc/gameclient/models"
)

// 视图广播接口
type Broadcaster interface {
	Publish(view models.SessionView)
}

// ViewBroadcaster fans session view snapshots out to presentation
// watchers. Watchers are strictly read-only over the views; a slow
// watcher misses snapshots rather than blocking the session loop.
type ViewBroadcaster struct {
	watchers map[string]chan models.SessionView
	mutex    sync.RWMutex
}

func NewViewBroadcaster() *ViewBroadcaster {
	return &ViewBroadcaster{
		watchers: make(map[string]chan models.SessionView),
	}
}

// Subscribe 注册一个观察者并返回其快照通道
func (b *ViewBroadcaster) Subscribe(id string, buffer int) <-chan models.SessionView {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	ch := make(chan models.SessionView, buffer)
	b.watchers[id] = ch
	return ch
}

// Unsubscribe 注销观察者
func (b *ViewBroadcaster) Unsubscribe(id string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if ch, exists := b.watchers[id]; exists {
		close(ch)
		delete(b.watchers, id)
	}
}

// Publish 向所有观察者发送最新视图，发不进去就丢
func (b *ViewBroadcaster) Publish(view models.SessionView) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, ch := range b.watchers {
		select {
		case ch <- view:
		default:
			// 观察者太慢，丢掉这帧
		}
	}
}
