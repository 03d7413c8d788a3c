package detection

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"
)

// Detection は1件の検出結果を表す
type Detection struct {
	Box      image.Rectangle // 出力フレーム座標系でのバウンディングボックス
	Category int             // クラス番号（ラベル一覧へのインデックス）
	Score    float64         // 検出スコア (0.0-1.0)
}

// NetworkIntrinsics はネットワーク固有のパラメータを保持する
// モデル(.rpk)に付属するJSONサイドカーから読み込む
type NetworkIntrinsics struct {
	Task                string   `json:"task"`                  // タスク種別（object detection）
	InferenceRate       int      `json:"inference_rate"`        // 推論レート(fps)
	BBoxNormalization   bool     `json:"bbox_normalization"`    // 座標を入力高さで正規化するか
	BBoxOrder           string   `json:"bbox_order"`            // 座標順序 ("yx" または "xy")
	PreserveAspectRatio bool     `json:"preserve_aspect_ratio"` // アスペクト比保持（レターボックス）
	IgnoreDashLabels    bool     `json:"ignore_dash_labels"`    // "-" ラベルを除外するか
	InputWidth          int      `json:"input_width"`           // 入力テンソル幅
	InputHeight         int      `json:"input_height"`          // 入力テンソル高さ
	Labels              []string `json:"labels"`                // クラスラベル一覧
}

// DefaultIntrinsics はMobileNet v2 SSD (imx500-all収録モデル)のデフォルト値を返す
func DefaultIntrinsics() NetworkIntrinsics {
	return NetworkIntrinsics{
		Task:             "object detection",
		InferenceRate:    30,
		BBoxOrder:        "yx",
		IgnoreDashLabels: true,
		InputWidth:       320,
		InputHeight:      320,
		Labels:           cocoLabels(),
	}
}

// LoadIntrinsics はモデルパスに対応するintrinsicsを読み込む
// <model>.json サイドカーがあればそれを使い、なければデフォルト値を返す
func LoadIntrinsics(modelPath string) (NetworkIntrinsics, error) {
	intrinsics := DefaultIntrinsics()

	sidecar := strings.TrimSuffix(modelPath, ".rpk") + ".json"
	data, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return intrinsics, nil
		}
		return intrinsics, fmt.Errorf("intrinsicsの読み込みに失敗: %w", err)
	}

	if err := json.Unmarshal(data, &intrinsics); err != nil {
		return intrinsics, fmt.Errorf("intrinsicsの解析に失敗 (%s): %w", sidecar, err)
	}

	// 欠落フィールドを補完
	if intrinsics.Task == "" {
		intrinsics.Task = "object detection"
	}
	if intrinsics.InputWidth <= 0 {
		intrinsics.InputWidth = 320
	}
	if intrinsics.InputHeight <= 0 {
		intrinsics.InputHeight = 320
	}
	if len(intrinsics.Labels) == 0 {
		intrinsics.Labels = cocoLabels()
	}

	return intrinsics, nil
}

// EffectiveLabels は描画に使用するラベル一覧を返す
// ignore_dash_labels が有効な場合、"-" プレースホルダを除外した一覧を返す
// （モデル側のクラス番号は除外後の一覧に対応している）
func (n NetworkIntrinsics) EffectiveLabels() []string {
	if !n.IgnoreDashLabels {
		return n.Labels
	}

	labels := make([]string, 0, len(n.Labels))
	for _, label := range n.Labels {
		if label != "" && label != "-" {
			labels = append(labels, label)
		}
	}
	return labels
}
