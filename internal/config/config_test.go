package config

import (
	"os"
	"testing"
	"time"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	// 設定を読み込む
	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（ストリーミング用に無効）が正常
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("書き込みタイムアウトは無効であるべきです: %v", cfg.Server.WriteTimeout)
	}

	// カメラ設定の検証
	if cfg.Camera.ModelPath != DefaultModelPath {
		t.Errorf("モデルパスのデフォルト値が不正: %s", cfg.Camera.ModelPath)
	}
	if cfg.Camera.MaxFrameRate != 10 {
		t.Errorf("フレームレート上限のデフォルト値が不正: %d", cfg.Camera.MaxFrameRate)
	}
	if cfg.Camera.BufferCount != 12 {
		t.Errorf("バッファ数のデフォルト値が不正: %d", cfg.Camera.BufferCount)
	}

	// 検出設定の検証
	if cfg.Detection.Threshold != 0.55 {
		t.Errorf("検出しきい値のデフォルト値が不正: %f", cfg.Detection.Threshold)
	}
	if cfg.Detection.IOU != 0.65 {
		t.Errorf("IOUのデフォルト値が不正: %f", cfg.Detection.IOU)
	}
	if cfg.Detection.MaxDetections != 10 {
		t.Errorf("最大検出数のデフォルト値が不正: %d", cfg.Detection.MaxDetections)
	}

	// レコーダー設定の検証
	if cfg.Recorder.OutputDir == "" {
		t.Error("スナップショット保存先が設定されていません")
	}
	if cfg.Recorder.RetentionDays <= 0 {
		t.Error("保持期間が設定されていません")
	}
}

// TestConfigLoadEnvOverride は環境変数による上書きをテストする
func TestConfigLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("AIPICAM_MODEL", "/tmp/test_model.rpk")
	t.Setenv("AIPICAM_MAX_FPS", "5")
	t.Setenv("AIPICAM_RECORDER", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Camera.ModelPath != "/tmp/test_model.rpk" {
		t.Errorf("Expected model path /tmp/test_model.rpk, got %s", cfg.Camera.ModelPath)
	}
	if cfg.Camera.MaxFrameRate != 5 {
		t.Errorf("Expected max fps 5, got %d", cfg.Camera.MaxFrameRate)
	}
	if cfg.Recorder.Enabled {
		t.Error("Expected recorder to be disabled")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{
			name:      "デフォルト設定は有効",
			mutate:    func(_ *Config) {},
			expectErr: false,
		},
		{
			name:      "ポート番号が0",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			expectErr: true,
		},
		{
			name:      "ポート番号が範囲外",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			expectErr: true,
		},
		{
			name:      "ホストが空",
			mutate:    func(c *Config) { c.Server.Host = "" },
			expectErr: true,
		},
		{
			name:      "モデルパスが空",
			mutate:    func(c *Config) { c.Camera.ModelPath = "" },
			expectErr: true,
		},
		{
			name:      "しきい値が範囲外",
			mutate:    func(c *Config) { c.Detection.Threshold = 1.5 },
			expectErr: true,
		},
		{
			name:      "最大検出数が0",
			mutate:    func(c *Config) { c.Detection.MaxDetections = 0 },
			expectErr: true,
		},
		{
			name:      "読み込みタイムアウトが負の値",
			mutate:    func(c *Config) { c.Server.ReadTimeout = -1 * time.Second },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("設定の読み込みに失敗しました: %v", err)
			}

			tc.mutate(cfg)

			err = cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

// TestServerAddress はリッスンアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}

	expected := "127.0.0.1:8080"
	if addr := cfg.ServerAddress(); addr != expected {
		t.Errorf("Expected %s, got %s", expected, addr)
	}
}

// TestGetEnvHelpers は環境変数ヘルパーをテストする
func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("AIPICAM_TEST_STR", "value")
	if v := getEnvOrDefault("AIPICAM_TEST_STR", "default"); v != "value" {
		t.Errorf("Expected value, got %s", v)
	}
	if v := getEnvOrDefault("AIPICAM_TEST_UNSET", "default"); v != "default" {
		t.Errorf("Expected default, got %s", v)
	}

	t.Setenv("AIPICAM_TEST_INT", "42")
	if v := getEnvAsIntOrDefault("AIPICAM_TEST_INT", 1); v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}

	// 数値として解釈できない場合はデフォルト値
	os.Setenv("AIPICAM_TEST_BAD", "abc")
	defer os.Unsetenv("AIPICAM_TEST_BAD")
	if v := getEnvAsIntOrDefault("AIPICAM_TEST_BAD", 7); v != 7 {
		t.Errorf("Expected 7, got %d", v)
	}
}
