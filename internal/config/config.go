package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultModelPath はIMX500用MobileNet v2 SSDモデルのデフォルトパス
// Raspberry Pi へのインストールは: sudo apt install imx500-all
const DefaultModelPath = "/usr/share/imx500-models/imx500_network_ssd_mobilenetv2_fpnlite_320x320_pp.rpk"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig
	Camera    CameraConfig
	Detection DetectionConfig
	Recorder  RecorderConfig
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `validate:"required"` // リッスンするホスト
	Port int    `validate:"min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration // 読み込みタイムアウト
	WriteTimeout time.Duration // 書き込みタイムアウト
}

// CameraConfig はIMX500カメラ関連の設定
type CameraConfig struct {
	ModelPath string `validate:"required"` // AIモデル(.rpk)のパス

	// ストリーミング設定
	MaxFrameRate int `validate:"min=1,max=60"` // フレームレート上限(fps)
	BufferCount  int `validate:"min=1"`        // リクエストバッファ数
	Width        int `validate:"min=1"`        // 出力画像幅
	Height       int `validate:"min=1"`        // 出力画像高さ
}

// DetectionConfig は推論後処理の設定
type DetectionConfig struct {
	Threshold     float64 `validate:"gt=0,lt=1"` // 検出スコアのしきい値
	IOU           float64 `validate:"gt=0,lt=1"` // NMSのIOUしきい値
	MaxDetections int     `validate:"min=1"`     // 1フレームあたりの最大検出数
}

// RecorderConfig は検出スナップショット記録の設定
type RecorderConfig struct {
	Enabled       bool
	OutputDir     string        `validate:"required"`
	MinInterval   time.Duration // カメラ毎の最短保存間隔
	RetentionDays int           `validate:"min=1"` // スナップショット保持期間（日数）
}

// Load は設定を読み込む
// 環境変数があればデフォルト値を上書きする
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			ModelPath: getEnvOrDefault("AIPICAM_MODEL", DefaultModelPath),
			// 推論レートに合わせて10fpsに制限する（実効値はモデル側と比較して小さい方）
			MaxFrameRate: getEnvAsIntOrDefault("AIPICAM_MAX_FPS", 10),
			BufferCount:  12,
			Width:        getEnvAsIntOrDefault("AIPICAM_WIDTH", 1280),
			Height:       getEnvAsIntOrDefault("AIPICAM_HEIGHT", 720),
		},
		Detection: DetectionConfig{
			Threshold:     0.55,
			IOU:           0.65,
			MaxDetections: 10,
		},
		Recorder: RecorderConfig{
			Enabled:       getEnvOrDefault("AIPICAM_RECORDER", "1") != "0",
			OutputDir:     getEnvOrDefault("AIPICAM_SNAPSHOT_DIR", "snapshots"),
			MinInterval:   10 * time.Second,
			RetentionDays: 30,
		},
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	// タイムアウトは負の値を許可しない（0はストリーミング用に有効）
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("タイムアウトに負の値は指定できません")
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
