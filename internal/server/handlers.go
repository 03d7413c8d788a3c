package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"aipicam/internal/camera"
	"aipicam/internal/recorder"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string              `json:"status"`
	Server    ServerInfo          `json:"server"`
	Cameras   int                 `json:"cameras"`
	Recorder  recorder.StatusInfo `json:"recorder"`
	Timestamp time.Time           `json:"timestamp"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// CameraResponse はカメラ情報のレスポンス
type CameraResponse struct {
	ID     string `json:"id"`
	Num    int    `json:"num"`
	Name   string `json:"name"`
	Model  string `json:"model"`
	Status string `json:"status"`
}

// StopResponse はストリーム停止のレスポンス（元実装のJSON形式に合わせる）
type StopResponse struct {
	Result  string `json:"result"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHome はホームページを描画する
func (s *Server) handleHome(c *gin.Context) {
	// 元実装と同様、ホームページ表示時にカメラ一覧を更新する
	cameras, err := s.manager.Refresh(c.Request.Context())
	if err != nil {
		log.Printf("カメラ一覧の更新に失敗: %v", err)
		cameras = s.manager.List()
	}

	c.HTML(http.StatusOK, "home.html", gin.H{
		"Title":   "Raspberry Pi AI Camera Demo",
		"Cameras": toCameraResponses(cameras),
	})
}

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイント
func (s *Server) handleStatus(c *gin.Context) {
	response := StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Cameras:   len(s.manager.List()),
		Timestamp: time.Now(),
	}

	if s.recorder != nil {
		response.Recorder = s.recorder.Status()
	}

	c.JSON(http.StatusOK, response)
}

// handleCameras はカメラ一覧取得エンドポイント
func (s *Server) handleCameras(c *gin.Context) {
	cameras, err := s.manager.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "discovery_failed",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cameras": toCameraResponses(cameras)})
}

// handleStream はMJPEGストリーミングエンドポイント
// カメラの推論付きストリーミングを開始し、multipartで配信する
func (s *Server) handleStream(c *gin.Context) {
	num, err := strconv.Atoi(c.Param("num"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_camera_number",
			Message:   "カメラ番号が不正です",
			Timestamp: time.Now(),
		})
		return
	}

	log.Printf(">> カメラ %d のストリーミングを開始します", num)

	output, err := s.manager.StartStream(c.Request.Context(), num)
	if err != nil {
		if errors.Is(err, camera.ErrCameraNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:     "camera_not_found",
				Message:   "指定されたカメラが見つかりません",
				Timestamp: time.Now(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "camera_init_failed",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	s.streamMJPEG(c, output)
}

// handleStopStream はストリーム停止エンドポイント
func (s *Server) handleStopStream(c *gin.Context) {
	num, err := strconv.Atoi(c.Param("num"))
	if err != nil {
		c.JSON(http.StatusOK, StopResponse{
			Result:  "error",
			Message: "カメラ番号が不正です",
		})
		return
	}

	if err := s.manager.StopStream(c.Request.Context(), num); err != nil {
		// 元実装はエラーでも200でJSONを返す
		message := err.Error()
		if errors.Is(err, camera.ErrCameraNotFound) {
			message = "指定されたカメラが見つかりません"
		}
		c.JSON(http.StatusOK, StopResponse{
			Result:  "error",
			Message: message,
		})
		return
	}

	c.JSON(http.StatusOK, StopResponse{Result: "success"})
}

// streamMJPEG はMJPEGストリームを配信する
func (s *Server) streamMJPEG(c *gin.Context, output *camera.Output) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// フレーム配信を購読する
	id, frameChan := output.Subscribe()
	defer output.Unsubscribe(id)

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case frame, ok := <-frameChan:
			if !ok {
				// チャンネルがクローズされた（カメラ停止）
				return
			}

			// MJPEGフレームを書き込み
			if _, err := writer.Write([]byte("--frame\r\n")); err != nil {
				return
			}

			if _, err := writer.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
				return
			}

			if _, err := writer.Write(frame); err != nil {
				return
			}

			if _, err := writer.Write([]byte("\r\n")); err != nil {
				return
			}

			// バッファをフラッシュ
			flusher.Flush()
		}
	}
}

// toCameraResponses はカメラ一覧をレスポンス形式へ変換する
func toCameraResponses(cameras []camera.Camera) []CameraResponse {
	responses := make([]CameraResponse, 0, len(cameras))
	for _, cam := range cameras {
		responses = append(responses, CameraResponse{
			ID:     cam.ID,
			Num:    cam.Num,
			Name:   cam.Name,
			Model:  cam.Model,
			Status: string(cam.Status),
		})
	}
	return responses
}
