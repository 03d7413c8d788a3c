// Package detection はIMX500の推論結果の後処理を担う
//
// # 責務
// - MobileNet v2 SSD 出力テンソルの解析（しきい値・座標変換）
// - ネットワーク固有パラメータ（intrinsics）の読み込み
// - 検出結果のフレームへの描画（バウンディングボックス・ラベル・FPS）
//
// # 仕様
// - 推論自体はIMX500センサー上のNPUで実行される。本パッケージは
//   出力テンソルを検出結果へ変換するのみ
// - 出力テンソルが欠落したフレームでは直前の結果を再利用する
//   （画面のちらつき防止）
// - 座標は入力テンソル空間(320x320)から出力フレーム空間へ変換する
package detection
