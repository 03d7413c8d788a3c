package detection

import (
	"image"
	"math"
)

// Parser はMobileNet v2 SSDの出力テンソルを検出結果へ変換する
//
// 出力テンソルは固定スロット数Nに対して
// boxes(4N) / scores(N) / classes(N) の順で連結されている
type Parser struct {
	intrinsics    NetworkIntrinsics
	threshold     float64
	maxDetections int

	// 直前の結果（テンソル欠落時のちらつき防止用）
	lastResults []Detection
}

// NewParser は新しいParserを作成する
func NewParser(intrinsics NetworkIntrinsics, threshold float64, maxDetections int) *Parser {
	return &Parser{
		intrinsics:    intrinsics,
		threshold:     threshold,
		maxDetections: maxDetections,
	}
}

// Parse は出力テンソルを解析して検出結果を返す
// テンソルが欠落したフレームでは直前の結果をそのまま返す
func (p *Parser) Parse(tensor []float32, frameWidth, frameHeight int) []Detection {
	// テンソルがないフレームは前回の結果を使う
	if len(tensor) < 6 {
		return p.lastResults
	}

	slots := len(tensor) / 6
	boxes := tensor[:4*slots]
	scores := tensor[4*slots : 5*slots]
	classes := tensor[5*slots : 6*slots]

	results := make([]Detection, 0, p.maxDetections)
	for i := 0; i < slots; i++ {
		score := float64(scores[i])
		if score <= p.threshold {
			continue
		}
		if len(results) >= p.maxDetections {
			break
		}

		box := [4]float64{
			float64(boxes[4*i]),
			float64(boxes[4*i+1]),
			float64(boxes[4*i+2]),
			float64(boxes[4*i+3]),
		}

		// 正規化されていないモデルは入力高さで割る
		if p.intrinsics.BBoxNormalization {
			for j := range box {
				box[j] /= float64(p.intrinsics.InputHeight)
			}
		}

		// 座標順序を y0,x0,y1,x1 に揃える
		if p.intrinsics.BBoxOrder == "xy" {
			box[0], box[1], box[2], box[3] = box[1], box[0], box[3], box[2]
		}

		results = append(results, Detection{
			Box:      p.convertCoords(box, frameWidth, frameHeight),
			Category: int(classes[i]),
			Score:    score,
		})
	}

	p.lastResults = results
	return results
}

// LastResults は直前に解析した検出結果を返す
func (p *Parser) LastResults() []Detection {
	return p.lastResults
}

// convertCoords は正規化座標 (y0,x0,y1,x1) を出力フレームのピクセル座標へ変換する
func (p *Parser) convertCoords(box [4]float64, frameWidth, frameHeight int) image.Rectangle {
	y0, x0, y1, x1 := box[0], box[1], box[2], box[3]

	// アスペクト比保持モデルはフレームをレターボックスで入力テンソルに
	// 収めているため、パディング分を差し引いてから変換する
	if p.intrinsics.PreserveAspectRatio {
		inputW := float64(p.intrinsics.InputWidth)
		inputH := float64(p.intrinsics.InputHeight)
		scale := math.Min(inputW/float64(frameWidth), inputH/float64(frameHeight))

		usableW := float64(frameWidth) * scale / inputW
		usableH := float64(frameHeight) * scale / inputH
		padX := (1 - usableW) / 2
		padY := (1 - usableH) / 2

		x0 = (x0 - padX) / usableW
		x1 = (x1 - padX) / usableW
		y0 = (y0 - padY) / usableH
		y1 = (y1 - padY) / usableH
	}

	rect := image.Rect(
		int(math.Round(clamp01(x0)*float64(frameWidth))),
		int(math.Round(clamp01(y0)*float64(frameHeight))),
		int(math.Round(clamp01(x1)*float64(frameWidth))),
		int(math.Round(clamp01(y1)*float64(frameHeight))),
	)

	// フレーム境界内に収める
	return rect.Intersect(image.Rect(0, 0, frameWidth, frameHeight))
}

// clamp01 は値を [0, 1] に収める
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
