package camera

import (
	"context"
	"testing"
)

// sampleListOutput は rpicam-hello --list-cameras の出力サンプル
const sampleListOutput = `Available cameras
-----------------
0 : imx500 [4056x3040 12-bit RGGB] (/base/soc/i2c0mux/i2c@1/imx500@1a)
    Modes: 'SRGGB10_CSI2P' : 2028x1520 [30.02 fps - (0, 0)/4056x3040 crop]
           'SRGGB12_CSI2P' : 4056x3040 [10.00 fps - (0, 0)/4056x3040 crop]
1 : imx708 [4608x2592 10-bit RGGB] (/base/soc/i2c0mux/i2c@0/imx708@1a)
    Modes: 'SRGGB10_CSI2P' : 1536x864 [120.13 fps - (768, 432)/3072x1728 crop]
`

func TestParseCameraList(t *testing.T) {
	cameras := parseCameraList(sampleListOutput)

	if len(cameras) != 2 {
		t.Fatalf("Expected 2 cameras, got %d", len(cameras))
	}

	if cameras[0].Num != 0 || cameras[0].Model != "imx500" {
		t.Errorf("Unexpected camera 0: %+v", cameras[0])
	}
	if cameras[0].Width != 4056 || cameras[0].Height != 3040 {
		t.Errorf("Expected 4056x3040, got %dx%d", cameras[0].Width, cameras[0].Height)
	}

	if cameras[1].Num != 1 || cameras[1].Model != "imx708" {
		t.Errorf("Unexpected camera 1: %+v", cameras[1])
	}
}

func TestParseCameraListEmpty(t *testing.T) {
	// カメラが1台もない場合の出力
	cameras := parseCameraList("No cameras available!\n")
	if len(cameras) != 0 {
		t.Fatalf("Expected 0 cameras, got %d", len(cameras))
	}
}

func TestCameraInfoIsAICamera(t *testing.T) {
	testCases := []struct {
		model    string
		expected bool
	}{
		{"imx500", true},
		{"imx500_wide", true},
		{"imx708", false},
		{"imx219", false},
		{"", false},
	}

	for _, tc := range testCases {
		info := CameraInfo{Model: tc.model}
		if info.IsAICamera() != tc.expected {
			t.Errorf("IsAICamera(%q) = %v, expected %v", tc.model, info.IsAICamera(), tc.expected)
		}
	}
}

func TestMockDiscovery(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]CameraInfo{
		{Num: 0, Model: "imx500", Width: 4056, Height: 3040},
	})

	cameras, err := discovery.ListCameras(ctx)
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(cameras) != 1 {
		t.Fatalf("Expected 1 camera, got %d", len(cameras))
	}

	// カメラを追加
	discovery.AddCamera(CameraInfo{Num: 1, Model: "imx500"})
	cameras, _ = discovery.ListCameras(ctx)
	if len(cameras) != 2 {
		t.Fatalf("Expected 2 cameras after addition, got %d", len(cameras))
	}

	// カメラを削除
	discovery.RemoveCamera(0)
	cameras, _ = discovery.ListCameras(ctx)
	if len(cameras) != 1 {
		t.Fatalf("Expected 1 camera after removal, got %d", len(cameras))
	}
	if cameras[0].Num != 1 {
		t.Errorf("Expected camera 1 to remain, got %d", cameras[0].Num)
	}
}
