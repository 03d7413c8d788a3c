package detection

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// jpegQuality は注釈後フレームの再エンコード品質
const jpegQuality = 90

// Annotator は検出結果をフレームへ描画する
type Annotator struct {
	labels []string
}

// NewAnnotator は新しいAnnotatorを作成する
func NewAnnotator(intrinsics NetworkIntrinsics) *Annotator {
	return &Annotator{
		labels: intrinsics.EffectiveLabels(),
	}
}

// Annotate はJPEGフレームに検出結果とFPSを描画して再エンコードする
func (a *Annotator) Annotate(frame []byte, detections []Detection, fps float64) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}

	dc := gg.NewContextForImage(img)
	width := dc.Width()
	height := dc.Height()

	// 解像度に応じて線の太さを調整する
	lineWidth := math.Round(6 * float64(width) / 2048)
	if lineWidth < 1 {
		lineWidth = 1
	}

	dc.SetFontFace(basicfont.Face7x13)

	for _, det := range detections {
		a.drawDetection(dc, det, lineWidth)
	}

	a.drawFPS(dc, fps, width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}

	return buf.Bytes(), nil
}

// Label はクラス番号に対応するラベル名を返す
func (a *Annotator) Label(category int) string {
	if category < 0 || category >= len(a.labels) {
		return fmt.Sprintf("class %d", category)
	}
	return a.labels[category]
}

// drawDetection は1件の検出結果を描画する
func (a *Annotator) drawDetection(dc *gg.Context, det Detection, lineWidth float64) {
	box := det.Box
	label := fmt.Sprintf("%s (%.1f%%)", a.Label(det.Category), det.Score*100)

	textW, textH := dc.MeasureString(label)
	margin := math.Round(textH * 0.1)
	if margin < 2 {
		margin = 2
	}

	// ラベル背景（半透明の白）
	bgX := float64(box.Min.X) + lineWidth/2
	bgY := float64(box.Min.Y) + lineWidth/2
	dc.SetRGBA(1, 1, 1, 0.30)
	dc.DrawRectangle(bgX, bgY, textW+2*margin, textH+2*margin)
	dc.Fill()

	// ラベルテキスト（黒）
	dc.SetRGB(0, 0, 0)
	dc.DrawString(label, bgX+margin, bgY+margin+textH)

	// 検出ボックス（緑）
	dc.SetRGB(0, 1, 0)
	dc.SetLineWidth(lineWidth)
	dc.DrawRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()))
	dc.Stroke()
}

// drawFPS は右下にFPSを描画する
func (a *Annotator) drawFPS(dc *gg.Context, fps float64, width, height int) {
	text := fmt.Sprintf("FPS: %d", int(fps))
	textW, textH := dc.MeasureString(text)
	margin := math.Round(textH * 0.1)

	dc.SetRGB(0, 0, 0)
	dc.DrawString(text, float64(width)-textW-margin, float64(height)-margin)
}
