// 指示: miu200521358
package io_common

import (
	"errors"
	"fmt"
)

// IoErrorKind は入出力エラー種別を表す。
type IoErrorKind int

const (
	// IoErrorKindExtInvalid は拡張子不正を表す。
	IoErrorKindExtInvalid IoErrorKind = iota
	// IoErrorKindFileNotFound はファイル未検出を表す。
	IoErrorKindFileNotFound
	// IoErrorKindParseFailed は解析失敗を表す。
	IoErrorKindParseFailed
	// IoErrorKindFormatNotSupported は未対応形式を表す。
	IoErrorKindFormatNotSupported
)

// IoError は入出力エラーを表す。
type IoError struct {
	kind    IoErrorKind
	message string
	cause   error
}

// Error はエラーメッセージを返す。
func (e *IoError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap は原因エラーを返す。
func (e *IoError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind はエラー種別を返す。
func (e *IoError) Kind() IoErrorKind {
	if e == nil {
		return IoErrorKindParseFailed
	}
	return e.kind
}

// NewIoExtInvalid は拡張子不正エラーを生成する。
func NewIoExtInvalid(path string, cause error) *IoError {
	return &IoError{
		kind:    IoErrorKindExtInvalid,
		message: fmt.Sprintf("入力拡張子が未対応です: %s", path),
		cause:   cause,
	}
}

// NewIoFileNotFound はファイル未検出エラーを生成する。
func NewIoFileNotFound(path string, cause error) *IoError {
	return &IoError{
		kind:    IoErrorKindFileNotFound,
		message: fmt.Sprintf("ファイルが見つかりません: %s", path),
		cause:   cause,
	}
}

// NewIoParseFailed は解析失敗エラーを生成する。
func NewIoParseFailed(format string, cause error, params ...any) *IoError {
	return &IoError{
		kind:    IoErrorKindParseFailed,
		message: fmt.Sprintf(format, params...),
		cause:   cause,
	}
}

// NewIoFormatNotSupported は未対応形式エラーを生成する。
func NewIoFormatNotSupported(format string, cause error, params ...any) *IoError {
	return &IoError{
		kind:    IoErrorKindFormatNotSupported,
		message: fmt.Sprintf(format, params...),
		cause:   cause,
	}
}

// IsKind はエラーが指定種別のIoErrorか判定する。
func IsKind(err error, kind IoErrorKind) bool {
	var ioErr *IoError
	if !errors.As(err, &ioErr) {
		return false
	}
	return ioErr.Kind() == kind
}
