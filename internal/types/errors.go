package types

import (
	"errors"
	"fmt"
)

// 基础错误类型，消息会直接返回给调用方
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrExtraction      = errors.New("text extraction failed")
	ErrMissingFile     = errors.New("resume file not found")
	ErrInvalidArchive  = errors.New("invalid archive")
)

// ScreeningError 筛选流程中的用户可见错误
type ScreeningError struct {
	Op      string
	Path    string
	BaseErr error
	Detail  string
	Cause   error
}

func (e *ScreeningError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.BaseErr, e.Path)
	}
	return e.BaseErr.Error()
}

func (e *ScreeningError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ScreeningError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// IsClientError 判断错误是否应以 4xx 返回
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrMissingFile) ||
		errors.Is(err, ErrInvalidArchive)
}

// 错误构造函数

func NewUnsupportedTypeError(path string) error {
	return &ScreeningError{
		Op:      "dispatch",
		Path:    path,
		BaseErr: ErrUnsupportedType,
		Detail:  fmt.Sprintf("Unsupported file type for %s. Use PDF or DOCX resumes.", path),
	}
}

func NewPDFExtractionError(path string, cause error) error {
	return &ScreeningError{
		Op:      "extract_pdf",
		Path:    path,
		BaseErr: ErrExtraction,
		Detail:  "Unable to read PDF file. Ensure the file is a valid PDF.",
		Cause:   cause,
	}
}

func NewDOCXExtractionError(path string, cause error) error {
	return &ScreeningError{
		Op:      "extract_docx",
		Path:    path,
		BaseErr: ErrExtraction,
		Detail:  "Unable to read DOCX file. Ensure the file is a valid DOCX document.",
		Cause:   cause,
	}
}

func NewMissingFileError(path string) error {
	return &ScreeningError{
		Op:      "score",
		Path:    path,
		BaseErr: ErrMissingFile,
		Detail:  fmt.Sprintf("Resume file not found: %s. Ensure the path is correct.", path),
	}
}

func NewInvalidArchiveError(path string, cause error) error {
	return &ScreeningError{
		Op:      "unzip",
		Path:    path,
		BaseErr: ErrInvalidArchive,
		Detail:  "Invalid ZIP file. Please upload a valid .zip archive.",
		Cause:   cause,
	}
}
