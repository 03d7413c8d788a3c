package camera

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// cameraLinePattern は rpicam-hello --list-cameras の出力行にマッチする
// 例: "0 : imx500 [4056x3040 12-bit RGGB] (/base/soc/i2c0mux/i2c@1/imx500@1a)"
var cameraLinePattern = regexp.MustCompile(`^(\d+)\s*:\s*(\S+)\s*\[(\d+)x(\d+)`)

// RpicamDiscovery はrpicam-appsを使ったカメラ検出を実装する
type RpicamDiscovery struct{}

// NewRpicamDiscovery は新しいRpicamDiscoveryを作成する
func NewRpicamDiscovery() Discovery {
	return &RpicamDiscovery{}
}

// ListCameras は接続されているカメラ一覧を取得する
func (d *RpicamDiscovery) ListCameras(ctx context.Context) ([]CameraInfo, error) {
	cmd := exec.CommandContext(ctx, "rpicam-hello", "--list-cameras")
	output, err := cmd.Output()
	if err != nil {
		// rpicam-helloはカメラが1台もない場合も非0で終了する
		if len(output) == 0 {
			return nil, fmt.Errorf("カメラ一覧の取得に失敗: %w", err)
		}
	}

	return parseCameraList(string(output)), nil
}

// parseCameraList は rpicam-hello --list-cameras の出力を解析する
func parseCameraList(output string) []CameraInfo {
	var cameras []CameraInfo

	for _, line := range strings.Split(output, "\n") {
		matches := cameraLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		num, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		width, _ := strconv.Atoi(matches[3])
		height, _ := strconv.Atoi(matches[4])

		cameras = append(cameras, CameraInfo{
			Num:    num,
			Model:  matches[2],
			Width:  width,
			Height: height,
		})
	}

	return cameras
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	cameras []CameraInfo
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(cameras []CameraInfo) *MockDiscovery {
	return &MockDiscovery{cameras: cameras}
}

// ListCameras はモックカメラ一覧を返す
func (m *MockDiscovery) ListCameras(_ context.Context) ([]CameraInfo, error) {
	result := make([]CameraInfo, len(m.cameras))
	copy(result, m.cameras)
	return result, nil
}

// AddCamera はテスト用にカメラを追加する
func (m *MockDiscovery) AddCamera(info CameraInfo) {
	m.cameras = append(m.cameras, info)
}

// RemoveCamera はテスト用にカメラを削除する
func (m *MockDiscovery) RemoveCamera(num int) {
	for i, cam := range m.cameras {
		if cam.Num == num {
			m.cameras = append(m.cameras[:i], m.cameras[i+1:]...)
			return
		}
	}
}
