package camera

import (
	"context"
	"errors"
	"testing"

	"aipicam/internal/detection"
)

// newTestManager はモック構成のIMX500CameraManagerを作成する
func newTestManager(t *testing.T, discovery Discovery, frames [][]byte, tensors [][]float32) *IMX500CameraManager {
	t.Helper()

	factory := func(_ CaptureOptions) Capturer {
		return NewMockCapturer(frames, tensors)
	}

	return NewIMX500CameraManager(discovery, factory, detection.DefaultIntrinsics(), ManagerOptions{
		ModelPath:     "/tmp/test_model.rpk",
		Width:         160,
		Height:        120,
		MaxFrameRate:  10,
		BufferCount:   12,
		Threshold:     0.55,
		MaxDetections: 10,
	})
}

func TestManagerRefresh(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]CameraInfo{
		{Num: 0, Model: "imx500", Width: 4056, Height: 3040},
		{Num: 1, Model: "imx708", Width: 4608, Height: 2592}, // IMX500以外は除外される
	})

	manager := newTestManager(t, discovery, nil, nil)

	cameras, err := manager.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if len(cameras) != 1 {
		t.Fatalf("Expected 1 AI camera, got %d", len(cameras))
	}

	cam := cameras[0]
	if cam.Num != 0 {
		t.Errorf("Expected camera 0, got %d", cam.Num)
	}
	if cam.ID == "" {
		t.Error("Expected camera ID to be set")
	}
	if cam.Status != StatusInactive {
		t.Errorf("Expected status inactive, got %s", cam.Status)
	}
}

func TestManagerRefreshAddRemove(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]CameraInfo{
		{Num: 0, Model: "imx500"},
	})

	manager := newTestManager(t, discovery, nil, nil)

	if _, err := manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	first, found := manager.Get(0)
	if !found {
		t.Fatal("Camera 0 not found")
	}

	// 再列挙してもIDは維持される
	if _, err := manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	second, _ := manager.Get(0)
	if second.ID != first.ID {
		t.Error("Expected camera ID to be preserved across refreshes")
	}

	// カメラの追加
	discovery.AddCamera(CameraInfo{Num: 1, Model: "imx500"})
	cameras, _ := manager.Refresh(ctx)
	if len(cameras) != 2 {
		t.Fatalf("Expected 2 cameras after addition, got %d", len(cameras))
	}

	// カメラの取り外し
	discovery.RemoveCamera(0)
	cameras, _ = manager.Refresh(ctx)
	if len(cameras) != 1 {
		t.Fatalf("Expected 1 camera after removal, got %d", len(cameras))
	}
	if _, found := manager.Get(0); found {
		t.Error("Camera 0 should not be found after removal")
	}
}

func TestManagerStartStopStream(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]CameraInfo{
		{Num: 0, Model: "imx500"},
	})

	frame := testFrame(t, 160, 120)
	manager := newTestManager(t, discovery, [][]byte{frame}, [][]float32{personTensor})

	if _, err := manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	output, err := manager.StartStream(ctx, 0)
	if err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	if output == nil {
		t.Fatal("Expected output to be set")
	}

	cam, _ := manager.Get(0)
	if cam.Status != StatusActive {
		t.Errorf("Expected status active, got %s", cam.Status)
	}

	// 既に動作中の場合は同じ配信先を返す（複数クライアントで共有）
	shared, err := manager.StartStream(ctx, 0)
	if err != nil {
		t.Fatalf("Second StartStream failed: %v", err)
	}
	if shared != output {
		t.Error("Expected shared output for running camera")
	}

	if err := manager.StopStream(ctx, 0); err != nil {
		t.Fatalf("StopStream failed: %v", err)
	}

	cam, _ = manager.Get(0)
	if cam.Status != StatusInactive {
		t.Errorf("Expected status inactive after stop, got %s", cam.Status)
	}

	// 停止済みカメラの停止はエラーにならない（元実装の挙動）
	if err := manager.StopStream(ctx, 0); err != nil {
		t.Errorf("Expected no error stopping inactive camera, got %v", err)
	}
}

func TestManagerUnknownCamera(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, NewMockDiscovery(nil), nil, nil)

	if _, err := manager.StartStream(ctx, 99); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("Expected ErrCameraNotFound, got %v", err)
	}

	if err := manager.StopStream(ctx, 99); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("Expected ErrCameraNotFound, got %v", err)
	}

	if _, found := manager.Get(99); found {
		t.Error("Expected camera 99 not to be found")
	}
}

func TestManagerStopAll(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]CameraInfo{
		{Num: 0, Model: "imx500"},
		{Num: 1, Model: "imx500"},
	})

	frame := testFrame(t, 160, 120)
	manager := newTestManager(t, discovery, [][]byte{frame}, nil)

	if _, err := manager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, err := manager.StartStream(ctx, 0); err != nil {
		t.Fatalf("StartStream(0) failed: %v", err)
	}
	if _, err := manager.StartStream(ctx, 1); err != nil {
		t.Fatalf("StartStream(1) failed: %v", err)
	}

	if err := manager.StopAll(ctx); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	for _, cam := range manager.List() {
		if cam.Status != StatusInactive {
			t.Errorf("Expected camera %d to be inactive, got %s", cam.Num, cam.Status)
		}
	}
}
