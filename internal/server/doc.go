// Package server はHTTPサーバーとストリーミング配信を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// MJPEGストリーミングの配信、ホームページの描画を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - カメラ一覧・状態のJSON API
//   - MJPEGストリーミングの配信と停止
//   - 埋め込みテンプレートによるホームページ配信
//
// 仕様:
//   - ルーティングにはgin-gonic/ginを使用
//   - グレースフルシャットダウンに対応
//   - 複数クライアントの同時接続をサポート（ストリームは共有）
package server
