// Package logger はJSON形式の構造化ログ出力を提供する。
//
// すべてのログは1行のJSONとして標準出力へ書き出される。Initを呼び出すと
// プロセス起動ごとのセッションフォルダ（logs/2025-01-02_15-04-05/ の形式）が
// 作成され、info/warnレベルは info.log、error/fatalレベルは error.log にも
// 追記される。テストではInitを呼ばずに標準出力のみへ出力する。
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Fields はログエントリに付与するキーと値の組。
type Fields = logrus.Fields

// sessionFolderFormat はセッションフォルダ名の日時フォーマット。
const sessionFolderFormat = "2006-01-02_15-04-05"

// std はパッケージ全体で共有するlogrusロガー。
var std = newLogrus()

// newLogrus はJSONフォーマッタを設定したlogrusロガーを生成する。
func newLogrus() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	return l
}

// Init はセッションフォルダを作成し、レベルに応じたログファイルへの
// 追記を有効にする。logsDirが空の場合は "logs" を使用する。
func Init(logsDir string) error {
	if logsDir == "" {
		logsDir = "logs"
	}

	sessionDir := filepath.Join(logsDir, time.Now().Format(sessionFolderFormat))
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return fmt.Errorf("ログフォルダの作成に失敗: %w", err)
	}

	hook, err := newSessionFileHook(sessionDir)
	if err != nil {
		return err
	}
	std.AddHook(hook)

	return nil
}

// Info は情報レベルのログを出力する。
func Info(message string, fields Fields) {
	std.WithFields(fields).Info(message)
}

// Warn は警告レベルのログを出力する。
func Warn(message string, fields Fields) {
	std.WithFields(fields).Warn(message)
}

// Error はエラーレベルのログを出力する。
func Error(message string, fields Fields) {
	std.WithFields(fields).Error(message)
}

// Fatal は致命的エラーのログを出力してプロセスを終了する。
// スーパーバイザによる再起動を前提としたフェイルファスト動作。
func Fatal(message string, fields Fields) {
	std.WithFields(fields).Fatal(message)
}

// sessionFileHook はログレベルに応じてセッションフォルダ内の
// info.log / error.log へJSON行を追記するlogrusフック。
type sessionFileHook struct {
	// infoFile はinfo/warnレベルの出力先。
	infoFile *os.File
	// errorFile はerror/fatalレベルの出力先。
	errorFile *os.File
	// formatter はファイル出力用のJSONフォーマッタ。
	formatter logrus.Formatter
}

// newSessionFileHook はセッションフォルダ内にログファイルを開いてフックを生成する。
func newSessionFileHook(sessionDir string) (*sessionFileHook, error) {
	infoFile, err := os.OpenFile(filepath.Join(sessionDir, "info.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("info.logのオープンに失敗: %w", err)
	}

	errorFile, err := os.OpenFile(filepath.Join(sessionDir, "error.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		infoFile.Close()
		return nil, fmt.Errorf("error.logのオープンに失敗: %w", err)
	}

	return &sessionFileHook{
		infoFile:  infoFile,
		errorFile: errorFile,
		formatter: &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		},
	}, nil
}

// Levels はフックが反応するログレベルを返す。
func (h *sessionFileHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
	}
}

// Fire はログエントリをレベルに応じたファイルへ追記する。
func (h *sessionFileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("ログエントリのフォーマットに失敗: %w", err)
	}

	dest := h.infoFile
	if entry.Level <= logrus.ErrorLevel {
		dest = h.errorFile
	}

	if _, err := dest.Write(line); err != nil {
		return fmt.Errorf("ログファイルへの書き込みに失敗: %w", err)
	}
	return nil
}
