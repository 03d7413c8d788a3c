package main

import (
	"context"
	"flag"
	"log"

	"aipicam/internal/camera"
	"aipicam/internal/config"
	"aipicam/internal/detection"
	"aipicam/internal/recorder"
	"aipicam/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		ip   = flag.String("ip", "", "WebサーバーのIPアドレス (デフォルト: 0.0.0.0)")
		port = flag.Int("port", 0, "Webサーバーのポート番号 (デフォルト: 8080)")
	)
	flag.Parse()

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *ip != "" {
		cfg.Server.Host = *ip
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// モデルのintrinsicsを読み込む
	intrinsics, err := detection.LoadIntrinsics(cfg.Camera.ModelPath)
	if err != nil {
		log.Fatalf("モデル情報の読み込みに失敗しました: %v", err)
	}

	// カメラマネージャーを作成
	manager := camera.NewIMX500CameraManager(
		camera.NewRpicamDiscovery(),
		camera.DefaultCapturerFactory,
		intrinsics,
		camera.ManagerOptions{
			ModelPath:     cfg.Camera.ModelPath,
			Width:         cfg.Camera.Width,
			Height:        cfg.Camera.Height,
			MaxFrameRate:  cfg.Camera.MaxFrameRate,
			BufferCount:   cfg.Camera.BufferCount,
			Threshold:     cfg.Detection.Threshold,
			MaxDetections: cfg.Detection.MaxDetections,
		},
	)

	// コンテキストを作成
	ctx := context.Background()

	// 起動時にカメラを列挙する
	cameras, err := manager.Refresh(ctx)
	if err != nil {
		log.Printf("カメラの列挙に失敗しました: %v", err)
	} else {
		log.Printf("IMX500カメラを %d 台検出しました", len(cameras))
	}

	// スナップショットレコーダーを作成して開始
	rec := recorder.New(recorder.Config{
		Enabled:       cfg.Recorder.Enabled,
		OutputDir:     cfg.Recorder.OutputDir,
		MinInterval:   cfg.Recorder.MinInterval,
		RetentionDays: cfg.Recorder.RetentionDays,
	}, manager.Events())
	if err := rec.Start(ctx); err != nil {
		log.Fatalf("レコーダーの開始に失敗しました: %v", err)
	}

	// サーバーを作成して起動
	srv := server.New(cfg, manager, rec)

	log.Printf("AiPiCamサーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
