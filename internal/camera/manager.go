package camera

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aipicam/internal/detection"
)

// ErrCameraNotFound は指定されたカメラが存在しない場合のエラー
var ErrCameraNotFound = errors.New("カメラが見つかりません")

// eventBuffer は検出イベントチャンネルのバッファ数
const eventBuffer = 16

// ManagerOptions はIMX500CameraManagerの設定
type ManagerOptions struct {
	ModelPath     string  // AIモデル(.rpk)のパス
	Width         int     // 出力画像幅
	Height        int     // 出力画像高さ
	MaxFrameRate  int     // フレームレート上限(fps)
	BufferCount   int     // リクエストバッファ数
	Threshold     float64 // 検出しきい値
	MaxDetections int     // 最大検出数
}

// CapturerFactory はカメラ番号に対応するCapturerを作成する
// テストではモック実装へ差し替える
type CapturerFactory func(opts CaptureOptions) Capturer

// DefaultCapturerFactory はrpicam-vidを使う本番用のCapturerを作成する
func DefaultCapturerFactory(opts CaptureOptions) Capturer {
	return NewRpicamCapturer(opts)
}

// IMX500CameraManager はIMX500カメラの統合管理を担うManager実装
type IMX500CameraManager struct {
	discovery  Discovery
	factory    CapturerFactory
	intrinsics detection.NetworkIntrinsics
	opts       ManagerOptions

	cameras  map[int]*Camera
	services map[int]*StreamService
	events   chan DetectionEvent
	mu       sync.RWMutex
}

// NewIMX500CameraManager は新しいIMX500CameraManagerを作成する
func NewIMX500CameraManager(discovery Discovery, factory CapturerFactory, intrinsics detection.NetworkIntrinsics, opts ManagerOptions) *IMX500CameraManager {
	return &IMX500CameraManager{
		discovery:  discovery,
		factory:    factory,
		intrinsics: intrinsics,
		opts:       opts,
		cameras:    make(map[int]*Camera),
		services:   make(map[int]*StreamService),
		events:     make(chan DetectionEvent, eventBuffer),
	}
}

// Refresh は接続カメラを再列挙して管理対象を更新する
// ストリーミング中のカメラのサービスは維持される
func (m *IMX500CameraManager) Refresh(ctx context.Context) ([]Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos, err := m.discovery.ListCameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("カメラの列挙に失敗: %w", err)
	}

	found := make(map[int]bool)
	for _, info := range infos {
		// IMX500搭載カメラのみを管理対象にする
		if !info.IsAICamera() {
			continue
		}
		found[info.Num] = true

		if cam, exists := m.cameras[info.Num]; exists {
			cam.LastSeen = time.Now()
			continue
		}

		m.cameras[info.Num] = &Camera{
			ID:       uuid.New().String(),
			Num:      info.Num,
			Name:     fmt.Sprintf("AIカメラ %d (%s)", info.Num, info.Model),
			Model:    info.Model,
			Status:   StatusInactive,
			LastSeen: time.Now(),
		}
	}

	// 存在しなくなったカメラを削除する
	for num := range m.cameras {
		if found[num] {
			continue
		}
		if service, exists := m.services[num]; exists {
			if err := service.Stop(ctx); err != nil {
				log.Printf("カメラ %d の停止に失敗: %v", num, err)
			}
			delete(m.services, num)
		}
		delete(m.cameras, num)
	}

	return m.listLocked(), nil
}

// List は現在管理されているカメラ一覧を取得する
func (m *IMX500CameraManager) List() []Camera {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked()
}

// listLocked はロック済み前提でカメラ番号順の一覧を返す
func (m *IMX500CameraManager) listLocked() []Camera {
	cameras := make([]Camera, 0, len(m.cameras))
	for _, cam := range m.cameras {
		cameras = append(cameras, *cam)
	}
	sort.Slice(cameras, func(i, j int) bool {
		return cameras[i].Num < cameras[j].Num
	})
	return cameras
}

// Get は指定された番号のカメラを取得する
func (m *IMX500CameraManager) Get(num int) (*Camera, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cam, exists := m.cameras[num]
	if !exists {
		return nil, false
	}

	// コピーを返す
	result := *cam
	return &result, true
}

// StartStream はカメラのストリーミングと推論を開始する
// 既に動作中の場合は既存の配信先を返す（複数クライアントで共有する）
func (m *IMX500CameraManager) StartStream(ctx context.Context, num int) (*Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cam, exists := m.cameras[num]
	if !exists {
		return nil, ErrCameraNotFound
	}

	if service, running := m.services[num]; running && service.GetStatus() == StatusActive {
		return service.Output(), nil
	}

	// 推論レートを超えないフレームレートを選択する
	frameRate := m.opts.MaxFrameRate
	if m.intrinsics.InferenceRate > 0 && m.intrinsics.InferenceRate < frameRate {
		frameRate = m.intrinsics.InferenceRate
	}

	capturer := m.factory(CaptureOptions{
		Num:           num,
		ModelPath:     m.opts.ModelPath,
		Width:         m.opts.Width,
		Height:        m.opts.Height,
		FrameRate:     frameRate,
		BufferCount:   m.opts.BufferCount,
		Threshold:     m.opts.Threshold,
		MaxDetections: m.opts.MaxDetections,
	})

	parser := detection.NewParser(m.intrinsics, m.opts.Threshold, m.opts.MaxDetections)
	annotator := detection.NewAnnotator(m.intrinsics)
	service := NewStreamService(num, capturer, parser, annotator, m.opts.Width, m.opts.Height, m.events)

	// パイプラインは開始リクエストより長く生きる（複数クライアントで共有するため）
	if err := service.Start(context.WithoutCancel(ctx)); err != nil {
		cam.Status = StatusError
		return nil, fmt.Errorf("カメラ %d の開始に失敗: %w", num, err)
	}

	m.services[num] = service
	cam.Status = StatusActive
	cam.LastSeen = time.Now()

	return service.Output(), nil
}

// StopStream はカメラのストリーミングを停止する
// 停止済みのカメラを停止してもエラーにはならない
func (m *IMX500CameraManager) StopStream(ctx context.Context, num int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cam, exists := m.cameras[num]
	if !exists {
		return ErrCameraNotFound
	}

	service, running := m.services[num]
	if !running {
		log.Printf("カメラ %d は開始されていないか既に停止しています", num)
		return nil
	}

	if err := service.Stop(ctx); err != nil {
		return fmt.Errorf("カメラ %d の停止に失敗: %w", num, err)
	}

	delete(m.services, num)
	cam.Status = StatusInactive
	cam.LastSeen = time.Now()
	log.Printf("カメラ %d を停止しました", num)

	return nil
}

// StopAll は全カメラを停止する
func (m *IMX500CameraManager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stopErrors []error
	for num, service := range m.services {
		if err := service.Stop(ctx); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("カメラ %d の停止に失敗: %w", num, err))
		}
		delete(m.services, num)
		if cam, exists := m.cameras[num]; exists {
			cam.Status = StatusInactive
		}
	}

	if len(stopErrors) > 0 {
		return fmt.Errorf("一部のカメラ停止に失敗: %v", stopErrors)
	}

	return nil
}

// Events は全カメラの検出イベントを受信するチャンネルを返す
func (m *IMX500CameraManager) Events() <-chan DetectionEvent {
	return m.events
}
