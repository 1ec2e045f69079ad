// Package main provides localization for the vplay CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Decoding":      "デコード",
		"Playback":      "再生",
		"Debug":         "デバッグ",
		"Logging":       "ログ",

		// Root command
		"Play video files through the vplayer engine": "vplayerエンジンで動画ファイルを再生",

		// Commands
		"Play a video source":                        "動画ソースを再生",
		"Print stream information for video sources": "動画ソースのストリーム情報を表示",
		"Show version information":                   "バージョン情報を表示",
		"vplay version %s":                           "vplay バージョン %s",

		// Common flags
		"YAML configuration file":              "YAML設定ファイル",
		"Decode engine (mp4, testsrc)":         "デコードエンジン（mp4, testsrc）",
		"Path to the ffmpeg executable":        "ffmpeg実行ファイルのパス",
		"Ignore audio streams":                 "音声ストリームを無視",
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Suppress all log output":              "全てのログ出力を抑制",
		"Prefix log lines with timestamps":     "ログ行にタイムスタンプを付加",

		// Play flags
		"Frame scale factor (1.0 = source size)":                    "フレームの拡大率（1.0 = 元のサイズ）",
		"Output pixel format (rgba, bgra)":                          "出力ピクセル形式（rgba, bgra）",
		"Start position in milliseconds":                            "開始位置（ミリ秒）",
		"Stop after this long (0 = until interrupted)":              "指定時間で停止（0 = 中断まで）",
		"Seek to this fraction of the duration (0-1) after opening": "開いた後に再生時間のこの割合（0-1）の位置へシーク",
		"Directory to save presented frames as PNG":                 "表示したフレームをPNGで保存するディレクトリ",
		"Save every n-th presented frame":                           "n フレームごとに保存",
		"Serve prometheus metrics on this address":                  "このアドレスでprometheusメトリクスを公開",

		// Probe flags
		"Measure the key frame interval": "キーフレーム間隔を計測",
		"Measure decoder throughput":     "デコーダーのスループットを計測",

		// Error messages
		"Exactly one source argument is required":  "ソース引数を1つ指定してください",
		"At least one source argument is required": "ソース引数を1つ以上指定してください",
	})
}
