package camera

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer は購読者毎のフレームバッファ数
const subscriberBuffer = 10

// Output は注釈済みフレームを複数のクライアントへ配信する
// 遅いクライアントにはフレームを届けず破棄する（パイプラインを止めない）
type Output struct {
	mu          sync.RWMutex
	subscribers map[string]chan []byte
	closed      bool
}

// NewOutput は新しいOutputを作成する
func NewOutput() *Output {
	return &Output{
		subscribers: make(map[string]chan []byte),
	}
}

// Subscribe は配信先を追加し、購読IDとフレーム受信チャンネルを返す
func (o *Output) Subscribe() (string, <-chan []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan []byte, subscriberBuffer)

	if o.closed {
		// クローズ済みの場合は即座に閉じたチャンネルを返す
		close(ch)
		return id, ch
	}

	o.subscribers[id] = ch
	return id, ch
}

// Unsubscribe は配信先を削除する
func (o *Output) Unsubscribe(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ch, exists := o.subscribers[id]; exists {
		delete(o.subscribers, id)
		close(ch)
	}
}

// Write はフレームを全購読者へ配信する
// バッファが一杯の購読者へはフレームを破棄する
func (o *Output) Write(frame []byte) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return
	}

	for _, ch := range o.subscribers {
		select {
		case ch <- frame:
		default:
			// 遅い購読者はフレームを落とす
		}
	}
}

// SubscriberCount は現在の購読者数を返す
func (o *Output) SubscriberCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subscribers)
}

// Close は全購読者のチャンネルを閉じて配信を終了する
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true

	for id, ch := range o.subscribers {
		delete(o.subscribers, id)
		close(ch)
	}
}
