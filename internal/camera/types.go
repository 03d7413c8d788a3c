package camera

import (
	"context"
	"time"

	"aipicam/internal/detection"
)

// Status はカメラの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // カメラは停止中
	StatusActive   Status = "active"   // カメラは動作中（ストリーミング中）
	StatusError    Status = "error"    // カメラでエラーが発生
)

// Camera は管理対象カメラの情報を表す
type Camera struct {
	ID       string    // 一意識別子
	Num      int       // libcameraのカメラ番号
	Name     string    // 表示名
	Model    string    // センサーモデル名（例: imx500）
	Status   Status    // 現在の状態
	LastSeen time.Time // 最後に確認された時刻
}

// CameraInfo はDiscoveryが返すカメラデバイス情報
type CameraInfo struct {
	Num    int    // カメラ番号
	Model  string // センサーモデル名
	Width  int    // センサー最大幅
	Height int    // センサー最大高さ
}

// IsAICamera はIMX500搭載カメラかどうかを返す
func (i CameraInfo) IsAICamera() bool {
	return len(i.Model) >= 6 && i.Model[:6] == "imx500"
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ListCameras は接続されているカメラ一覧を取得する
	ListCameras(ctx context.Context) ([]CameraInfo, error)
}

// FrameMetadata はrpicam-vidが出力するフレーム毎のメタデータ
type FrameMetadata struct {
	SensorTimestamp int64     `json:"SensorTimestamp"`
	CnnOutputTensor []float32 `json:"CnnOutputTensor"`
}

// Capturer はカメラからのフレームとメタデータの取得を抽象化する
type Capturer interface {
	// StartStream はキャプチャを開始し、フレーム・メタデータ・エラーを
	// それぞれのチャンネルへ送信する
	StartStream(ctx context.Context, frameChan chan<- []byte, metaChan chan<- FrameMetadata, errChan chan<- error) error

	// IsAvailable はカメラが利用可能かチェックする
	IsAvailable(ctx context.Context) bool
}

// DetectionEvent はフレームで物体が検出されたことを表すイベント
type DetectionEvent struct {
	CameraNum  int                   // 検出したカメラ番号
	Timestamp  time.Time             // 検出時刻
	Detections []detection.Detection // 検出結果
	Frame      []byte                // 注釈済みJPEGフレーム
}

// Manager はカメラの統合管理を担うインターフェース
type Manager interface {
	// Refresh は接続カメラを再列挙して管理対象を更新する
	Refresh(ctx context.Context) ([]Camera, error)

	// List は現在管理されているカメラ一覧を取得する
	List() []Camera

	// Get は指定された番号のカメラを取得する
	Get(num int) (*Camera, bool)

	// StartStream はカメラのストリーミングと推論を開始する
	// 既に動作中の場合は既存の配信先を返す
	StartStream(ctx context.Context, num int) (*Output, error)

	// StopStream はカメラのストリーミングを停止する
	StopStream(ctx context.Context, num int) error

	// StopAll は全カメラを停止する
	StopAll(ctx context.Context) error

	// Events は全カメラの検出イベントを受信するチャンネルを返す
	Events() <-chan DetectionEvent
}
