package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// CaptureOptions はRpicamCapturerの設定
type CaptureOptions struct {
	Num           int     // カメラ番号
	ModelPath     string  // AIモデル(.rpk)のパス
	Width         int     // 出力画像幅
	Height        int     // 出力画像高さ
	FrameRate     int     // フレームレート(fps)
	BufferCount   int     // リクエストバッファ数
	Threshold     float64 // 検出しきい値（後処理ステージへ渡す）
	MaxDetections int     // 最大検出数（後処理ステージへ渡す）
}

// RpicamCapturer はrpicam-vidを使ってIMX500カメラからフレームと
// 推論メタデータを取得する
type RpicamCapturer struct {
	opts CaptureOptions

	// 一時ファイル（後処理設定とメタデータFIFO）
	ppConfigPath string
	fifoPath     string
}

// NewRpicamCapturer は新しいRpicamCapturerを作成する
func NewRpicamCapturer(opts CaptureOptions) *RpicamCapturer {
	return &RpicamCapturer{opts: opts}
}

// IsAvailable はカメラが利用可能かチェックする
func (c *RpicamCapturer) IsAvailable(ctx context.Context) bool {
	cameras, err := NewRpicamDiscovery().ListCameras(ctx)
	if err != nil {
		return false
	}
	for _, cam := range cameras {
		if cam.Num == c.opts.Num {
			return true
		}
	}
	return false
}

// StartStream はキャプチャと推論を開始する
// MJPEGフレームはframeChanへ、フレーム毎の推論メタデータはmetaChanへ送信する
func (c *RpicamCapturer) StartStream(ctx context.Context, frameChan chan<- []byte, metaChan chan<- FrameMetadata, errChan chan<- error) error {
	// IMX500後処理ステージの設定ファイルを作成
	ppConfigPath, err := c.writePostProcessConfig()
	if err != nil {
		return fmt.Errorf("後処理設定の作成に失敗: %w", err)
	}
	c.ppConfigPath = ppConfigPath

	// メタデータ受信用のFIFOを作成
	fifoPath := filepath.Join(os.TempDir(), fmt.Sprintf("aipicam-meta-%d-%d.fifo", c.opts.Num, os.Getpid()))
	_ = os.Remove(fifoPath)
	if err := unix.Mkfifo(fifoPath, 0600); err != nil {
		return fmt.Errorf("メタデータFIFOの作成に失敗: %w", err)
	}
	c.fifoPath = fifoPath

	cmd := exec.CommandContext(ctx,
		"rpicam-vid",
		"--camera", strconv.Itoa(c.opts.Num),
		"-t", "0",
		"-n",
		"--codec", "mjpeg",
		"--width", strconv.Itoa(c.opts.Width),
		"--height", strconv.Itoa(c.opts.Height),
		"--framerate", strconv.Itoa(c.opts.FrameRate),
		"--buffer-count", strconv.Itoa(c.opts.BufferCount),
		"--post-process-file", ppConfigPath,
		"--metadata", fifoPath,
		"--metadata-format", "json",
		"-o", "-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.cleanup()
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}

	if err := cmd.Start(); err != nil {
		c.cleanup()
		return fmt.Errorf("rpicam-vidの起動に失敗: %w", err)
	}

	// メタデータFIFOを読み取るゴルーチン
	go c.readMetadata(ctx, metaChan, errChan)

	// MJPEGフレームを読み取るゴルーチン
	go func() {
		defer func() {
			_ = cmd.Wait() // エラーは無視（コンテキストキャンセル時に発生するため）
			c.cleanup()
		}()
		splitJPEGStream(ctx, stdout, frameChan, errChan)
	}()

	return nil
}

// writePostProcessConfig はIMX500オブジェクト検出ステージの設定を一時ファイルへ書き出す
func (c *RpicamCapturer) writePostProcessConfig() (string, error) {
	config := map[string]any{
		"imx500_object_detection": map[string]any{
			"network_file":   c.opts.ModelPath,
			"threshold":      c.opts.Threshold,
			"max_detections": c.opts.MaxDetections,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("aipicam-pp-%d-%d.json", c.opts.Num, os.Getpid()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return path, nil
}

// readMetadata はFIFOからフレーム毎のメタデータを読み取る
// rpicam-vid はメタデータをJSON配列としてストリーム出力する
func (c *RpicamCapturer) readMetadata(ctx context.Context, metaChan chan<- FrameMetadata, errChan chan<- error) {
	// FIFOのオープンは書き込み側（rpicam-vid）が開くまでブロックする
	file, err := os.OpenFile(c.fifoPath, os.O_RDONLY, 0)
	if err != nil {
		errChan <- fmt.Errorf("メタデータFIFOのオープンに失敗: %w", err)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	decoder := json.NewDecoder(file)

	// 配列の開始トークンを読み飛ばす
	token, err := decoder.Token()
	if err != nil {
		return
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		errChan <- fmt.Errorf("予期しないメタデータ形式: %v", token)
		return
	}

	for decoder.More() {
		var meta FrameMetadata
		if err := decoder.Decode(&meta); err != nil {
			// ストリーム終端（プロセス終了）は正常
			return
		}

		select {
		case metaChan <- meta:
		case <-ctx.Done():
			return
		default:
			// 後処理が追いついていない場合は古いメタデータを捨てる
		}
	}
}

// cleanup は一時ファイルを削除する
func (c *RpicamCapturer) cleanup() {
	if c.ppConfigPath != "" {
		_ = os.Remove(c.ppConfigPath)
	}
	if c.fifoPath != "" {
		_ = os.Remove(c.fifoPath)
	}
}

// splitJPEGStream はMJPEGストリームをSOI/EOIマーカーでフレームに分割する
func splitJPEGStream(ctx context.Context, r io.Reader, frameChan chan<- []byte, errChan chan<- error) {
	buffer := make([]byte, 1024*1024) // 1MBバッファ
	frameBuffer := bytes.Buffer{}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			n, err := r.Read(buffer)
			if err != nil {
				if err.Error() != "EOF" {
					errChan <- fmt.Errorf("フレーム読み取りエラー: %w", err)
				}
				return
			}

			frameBuffer.Write(buffer[:n])

			// JPEGマーカーを探してフレームを分割
			data := frameBuffer.Bytes()
			for {
				// JPEGの開始マーカー（FF D8）を探す
				startIdx := bytes.Index(data, []byte{0xFF, 0xD8})
				if startIdx == -1 {
					break
				}

				// JPEGの終了マーカー（FF D9）を探す
				endIdx := bytes.Index(data[startIdx+2:], []byte{0xFF, 0xD9})
				if endIdx == -1 {
					// 完全なフレームがまだない
					if startIdx > 0 {
						// 不要なデータを削除
						frameBuffer.Reset()
						frameBuffer.Write(data[startIdx:])
					}
					break
				}

				// 完全なJPEGフレームを抽出
				endIdx += startIdx + 2 + 2 // マーカーのサイズを含める
				frame := make([]byte, endIdx)
				copy(frame, data[:endIdx])

				// フレームを送信
				select {
				case frameChan <- frame:
				case <-ctx.Done():
					return
				}

				// 処理済みデータを削除
				remaining := data[endIdx:]
				frameBuffer.Reset()
				if len(remaining) > 0 {
					frameBuffer.Write(remaining)
					data = frameBuffer.Bytes()
				} else {
					break
				}
			}
		}
	}
}
