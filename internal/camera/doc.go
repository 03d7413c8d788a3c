// Package camera はRaspberry Pi AI Camera (IMX500)の管理を担う
//
// # 責務
// - 接続されたIMX500カメラの列挙と状態管理
// - rpicam-vid経由でのMJPEGキャプチャとオンセンサー推論の起動
// - フレームと推論メタデータを組み合わせたストリーミングパイプライン
// - 複数クライアントへのフレーム配信（fan-out）
//
// # 仕様
// - Manager: カメラ番号をキーとした複数カメラの統合管理
// - Discovery: rpicam-hello --list-cameras によるカメラ列挙
// - Capturer: rpicam-vid のMJPEG出力をSOI/EOIマーカーで分割、
//   推論メタデータはFIFO経由でJSONとして受信
// - Service: フレーム毎に後処理・描画を行い Output へ配信
// - Thread-safe な操作をサポート
//
// # 前提要件
//   - rpicam-apps: カメラ列挙とキャプチャに使用
//     Raspberry Pi OS: sudo apt install rpicam-apps
//   - imx500-all: IMX500ファームウェアとモデルファイル
//     Raspberry Pi OS: sudo apt install imx500-all
package camera
