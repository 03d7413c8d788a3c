// Package recorder は検出イベントのスナップショット記録を担う
//
// # 責務
// - 検出イベント受信時の注釈済みフレームの保存
// - カメラ毎の最短保存間隔の制御
// - 保持期間を過ぎたスナップショットの削除
//
// # 仕様
// - スナップショットは camNN_YYYYmmdd_HHMMSS.jpg の形式で保存される
// - 保持期間の掃除は1時間間隔のバックグラウンド処理で行う
package recorder
