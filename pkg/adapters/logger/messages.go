package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Player lifecycle (info)
		"Opened %s: %dx%d, %.2f fps, %d ms, codec %s":           "%s を開きました: %dx%d, %.2f fps, %d ms, コーデック %s",
		"Failed to open %s: %s":                                 "%s を開けませんでした: %s",
		"Player closed":                                         "プレイヤーを閉じました",
		"Paused at %d ms":                                       "%d ms で一時停止しました",
		"Resumed at %d ms":                                      "%d ms から再開しました",
		"Seek to %.1f%% (%d ms)":                                "%.1f%% (%d ms) へシーク",
		"Seek failed: %s":                                       "シークに失敗しました: %s",
		"Failed to close source: %s":                            "ソースを閉じられませんでした: %s",
		"Failed to close decoder: %s":                           "デコーダーを閉じられませんでした: %s",
		"Source is not seekable, ignoring start position %d ms": "ソースがシークできないため開始位置 %d ms を無視します",
		"Failed to seek to start position %d ms: %s":            "開始位置 %d ms へのシークに失敗しました: %s",

		// Decode loop
		"End of stream, restarting":                 "ストリーム終端に達したため先頭から再生します",
		"Failed to rewind: %s":                      "先頭への巻き戻しに失敗しました: %s",
		"Read failed, retrying: %s":                 "読み込みに失敗しました。再試行します: %s",
		"Decoder rejected packet at %d: %s":         "デコーダーが %d のパケットを拒否しました: %s",
		"Failed to receive frame: %s":               "フレームの受信に失敗しました: %s",
		"Failed to convert frame: %s":               "フレームの変換に失敗しました: %s",
		"Invalid decode context, stopping playback": "デコードコンテキストが無効なため再生を停止します",

		// Decode context
		"Unable to get video duration":                                     "動画の長さを取得できません",
		"Video properties: %dx%d, %.3f fps, %.3f s, rotation %d, codec %s": "動画プロパティ: %dx%d, %.3f fps, %.3f 秒, 回転 %d, コーデック %s",
		"Video stream flushed":                                             "動画ストリームをフラッシュしました",
		"Check key frame: %.2f (index: %d)":                                "キーフレーム確認: %.2f (インデックス: %d)",
		"Key frame probe failed: %s":                                       "キーフレームの計測に失敗しました: %s",
		"Start test decoder fps":                                           "デコーダーfpsの計測を開始",
		"Decoder fps probe read failed: %s":                                "デコーダーfps計測の読み込みに失敗しました: %s",
		"Decoder fps probe send failed: %s":                                "デコーダーfps計測の送信に失敗しました: %s",
		"Decoder fps probe receive failed: %s":                             "デコーダーfps計測の受信に失敗しました: %s",

		// Converter
		"Converter kernel built: %s %dx%d -> %s %dx%d": "変換カーネルを構築しました: %s %dx%d -> %s %dx%d",

		// Engines
		"Indexed %d samples (%d key frames), codec %s": "%d サンプルをインデックスしました (キーフレーム %d), コーデック %s",
		"Synthesizing %dx%d %s at %.2f fps for %d ms":  "%dx%d %s を %.2f fps で %d ms 生成中",
		"Opened source %s (seekable=%t, size=%d)":      "ソース %s を開きました (シーク可能=%t, サイズ=%d)",

		// CLI
		"Interrupted, shutting down...":         "中断されました。シャットダウン中...",
		"Presented %d frames, stopped at %d ms": "%d フレームを表示し、%d ms で停止しました",
		"Failed to save frame %d: %s":           "フレーム %d の保存に失敗しました: %s",
		"Serving metrics on %s":                 "%s でメトリクスを公開中",
		"Metrics server failed: %s":             "メトリクスサーバーが失敗しました: %s",
	})
}
