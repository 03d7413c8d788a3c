package camera

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"aipicam/internal/detection"
)

// StreamService は1台のカメラのストリーミングパイプラインを担う
// キャプチャしたフレームに推論結果を描画し、Outputへ配信する
type StreamService struct {
	cameraNum int
	capturer  Capturer
	parser    *detection.Parser
	annotator *detection.Annotator
	output    *Output
	events    chan<- DetectionEvent

	// フレームサイズ（座標変換用）
	width  int
	height int

	status Status
	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamService は新しいStreamServiceを作成する
func NewStreamService(num int, capturer Capturer, parser *detection.Parser, annotator *detection.Annotator, width, height int, events chan<- DetectionEvent) *StreamService {
	return &StreamService{
		cameraNum: num,
		capturer:  capturer,
		parser:    parser,
		annotator: annotator,
		output:    NewOutput(),
		events:    events,
		width:     width,
		height:    height,
		status:    StatusInactive,
	}
}

// Start はパイプラインを開始する
func (s *StreamService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		return nil // 既に開始済み
	}

	if !s.capturer.IsAvailable(ctx) {
		s.status = StatusError
		return fmt.Errorf("カメラ %d が利用できません", s.cameraNum)
	}

	serviceCtx, cancel := context.WithCancel(ctx)

	frameChan := make(chan []byte, 10)
	metaChan := make(chan FrameMetadata, 10)
	errChan := make(chan error, 5)

	if err := s.capturer.StartStream(serviceCtx, frameChan, metaChan, errChan); err != nil {
		cancel()
		s.status = StatusError
		return fmt.Errorf("カメラ %d のキャプチャ開始に失敗: %w", s.cameraNum, err)
	}

	s.cancel = cancel
	s.wg.Add(1)
	go s.processFrames(serviceCtx, frameChan, metaChan, errChan)

	s.status = StatusActive
	return nil
}

// Stop はパイプラインを停止する
func (s *StreamService) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusInactive {
		return nil // 既に停止済み
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.output.Close()

	s.status = StatusInactive
	return nil
}

// GetStatus は現在の状態を取得する
func (s *StreamService) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Output はフレーム配信先を返す
func (s *StreamService) Output() *Output {
	return s.output
}

// processFrames はフレームと推論メタデータを組み合わせて処理する
func (s *StreamService) processFrames(ctx context.Context, frameChan <-chan []byte, metaChan <-chan FrameMetadata, errChan <-chan error) {
	defer s.wg.Done()

	var latestTensor []float32
	var lastFrameTime time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errChan:
			log.Printf("カメラ %d のキャプチャエラー: %v", s.cameraNum, err)

		case meta := <-metaChan:
			// フレームより先に届いたメタデータを保持する
			latestTensor = meta.CnnOutputTensor

		case frame, ok := <-frameChan:
			if !ok {
				return
			}

			// FPSを計算する
			fps := 0.0
			now := time.Now()
			if !lastFrameTime.IsZero() {
				fps = 1 / now.Sub(lastFrameTime).Seconds()
			}
			lastFrameTime = now

			// テンソルが届いていないフレームではParserが前回の結果を返す
			detections := s.parser.Parse(latestTensor, s.width, s.height)
			latestTensor = nil

			annotated, err := s.annotator.Annotate(frame, detections, fps)
			if err != nil {
				log.Printf("カメラ %d のフレーム描画に失敗: %v", s.cameraNum, err)
				annotated = frame // 描画に失敗しても元フレームは配信する
			}

			s.output.Write(annotated)

			if len(detections) > 0 && s.events != nil {
				event := DetectionEvent{
					CameraNum:  s.cameraNum,
					Timestamp:  now,
					Detections: detections,
					Frame:      annotated,
				}
				select {
				case s.events <- event:
				default:
					// イベント処理が追いついていない場合は破棄する
				}
			}
		}
	}
}

// MockCapturer はテスト用のモックCapturer実装
type MockCapturer struct {
	mu        sync.Mutex
	available bool
	frames    [][]byte
	tensors   [][]float32
	interval  time.Duration
	startErr  error
}

// NewMockCapturer は新しいMockCapturerを作成する
func NewMockCapturer(frames [][]byte, tensors [][]float32) *MockCapturer {
	return &MockCapturer{
		available: true,
		frames:    frames,
		tensors:   tensors,
		interval:  10 * time.Millisecond,
	}
}

// SetAvailable はテスト用に利用可否を設定する
func (m *MockCapturer) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// SetStartError はテスト用にStartStream失敗を設定する
func (m *MockCapturer) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// IsAvailable はモックカメラが利用可能かを返す
func (m *MockCapturer) IsAvailable(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// StartStream は登録されたフレームとテンソルを順に送信する
func (m *MockCapturer) StartStream(ctx context.Context, frameChan chan<- []byte, metaChan chan<- FrameMetadata, _ chan<- error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}

	frames := m.frames
	tensors := m.tensors
	interval := m.interval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if len(tensors) > 0 {
					meta := FrameMetadata{
						SensorTimestamp: time.Now().UnixNano(),
						CnnOutputTensor: tensors[i%len(tensors)],
					}
					select {
					case metaChan <- meta:
					case <-ctx.Done():
						return
					}
				}

				if len(frames) > 0 {
					select {
					case frameChan <- frames[i%len(frames)]:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return nil
}
