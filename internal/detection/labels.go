package detection

import (
	_ "embed"
	"strings"
)

// COCOデータセットのクラスラベル
// "-" はモデルが使用しない欠番クラスのプレースホルダ
//
//go:embed coco_labels.txt
var cocoLabelsData string

// cocoLabels は埋め込みのCOCOラベル一覧を返す
func cocoLabels() []string {
	lines := strings.Split(strings.TrimSpace(cocoLabelsData), "\n")
	labels := make([]string, 0, len(lines))
	for _, line := range lines {
		labels = append(labels, strings.TrimSpace(line))
	}
	return labels
}
