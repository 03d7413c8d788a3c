package recorder

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"aipicam/internal/camera"
)

// sweepInterval は保持期間チェックの実行間隔
const sweepInterval = 1 * time.Hour

// Config はスナップショット記録の設定
type Config struct {
	Enabled       bool          // 有効/無効
	OutputDir     string        // スナップショット保存先
	MinInterval   time.Duration // カメラ毎の最短保存間隔
	RetentionDays int           // 保持期間（日数）
}

// StatusInfo はレコーダーの状態情報
type StatusInfo struct {
	Enabled        bool      `json:"enabled"`
	TotalSnapshots int       `json:"total_snapshots"`
	StorageUsed    int64     `json:"storage_used"`
	LastSnapshot   time.Time `json:"last_snapshot"`
}

// Recorder は検出イベントを受信してスナップショットを保存する
type Recorder struct {
	config Config
	events <-chan camera.DetectionEvent

	// カメラ毎の最終保存時刻
	lastSaved map[int]time.Time

	lastSnapshot time.Time
	mu           sync.RWMutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New は新しいRecorderを作成する
func New(config Config, events <-chan camera.DetectionEvent) *Recorder {
	return &Recorder{
		config:    config,
		events:    events,
		lastSaved: make(map[int]time.Time),
	}
}

// Start はレコーダーを開始する
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.config.Enabled {
		log.Println("スナップショット記録は無効です")
		return nil
	}

	// 出力ディレクトリを作成
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	recorderCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(2)
	go r.receiveEvents(recorderCtx)
	go r.sweepLoop(recorderCtx)

	log.Printf("スナップショット記録を開始しました (保存先: %s)", r.config.OutputDir)
	return nil
}

// Stop はレコーダーを停止する
func (r *Recorder) Stop(_ context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	// handleEventがロック待ちでデッドロックしないよう、ロック外で待機する
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	log.Println("スナップショット記録を停止しました")
	return nil
}

// Status はレコーダーの状態を取得する
func (r *Recorder) Status() StatusInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := StatusInfo{
		Enabled:      r.config.Enabled,
		LastSnapshot: r.lastSnapshot,
	}

	entries, err := os.ReadDir(r.config.OutputDir)
	if err != nil {
		return info
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		info.TotalSnapshots++
		if fi, err := entry.Info(); err == nil {
			info.StorageUsed += fi.Size()
		}
	}

	return info
}

// receiveEvents は検出イベントを受信してスナップショットを保存する
func (r *Recorder) receiveEvents(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-r.events:
			if !ok {
				return
			}
			r.handleEvent(event)
		}
	}
}

// handleEvent は1件の検出イベントを処理する
func (r *Recorder) handleEvent(event camera.DetectionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// カメラ毎に最短保存間隔を空ける
	if last, exists := r.lastSaved[event.CameraNum]; exists {
		if event.Timestamp.Sub(last) < r.config.MinInterval {
			return
		}
	}

	filename := fmt.Sprintf("cam%02d_%s.jpg", event.CameraNum, event.Timestamp.Format("20060102_150405"))
	path := filepath.Join(r.config.OutputDir, filename)

	if err := os.WriteFile(path, event.Frame, 0644); err != nil {
		log.Printf("スナップショットの保存に失敗 (%s): %v", filename, err)
		return
	}

	r.lastSaved[event.CameraNum] = event.Timestamp
	r.lastSnapshot = event.Timestamp
	log.Printf("スナップショットを保存しました: %s (%d件の検出)", filename, len(event.Detections))
}

// sweepLoop は定期的に保持期間を過ぎたスナップショットを削除する
func (r *Recorder) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	// 起動直後にも1回掃除する
	r.sweep()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep は保持期間を過ぎたスナップショットを削除する
func (r *Recorder) sweep() {
	cutoff := time.Now().AddDate(0, 0, -r.config.RetentionDays)

	entries, err := os.ReadDir(r.config.OutputDir)
	if err != nil {
		log.Printf("出力ディレクトリの読み取りに失敗: %v", err)
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			continue
		}

		if fi.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(r.config.OutputDir, entry.Name())); err != nil {
				log.Printf("スナップショットの削除に失敗 (%s): %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		log.Printf("保持期間を過ぎたスナップショットを %d 件削除しました", removed)
	}
}
