package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"

	"resume-matcher/internal/constants"
	"resume-matcher/internal/types"
)

// UploadSource 一个待保存的上传内容
type UploadSource struct {
	Name   string
	Reader io.Reader
	closer io.Closer
}

// Close 释放底层资源
func (s UploadSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// FromMultipart 从表单文件构造上传内容，调用方负责 Close
func FromMultipart(fh *multipart.FileHeader) (UploadSource, error) {
	if fh == nil {
		return UploadSource{}, fmt.Errorf("表单文件为空")
	}
	f, err := fh.Open()
	if err != nil {
		return UploadSource{}, fmt.Errorf("打开上传文件 %s 失败: %w", fh.Filename, err)
	}
	return UploadSource{Name: fh.Filename, Reader: f, closer: f}, nil
}

// FromReader 从任意 io.Reader 构造上传内容
func FromReader(name string, r io.Reader) UploadSource {
	src := UploadSource{Name: name, Reader: r}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// FromBytes 从内存数据构造上传内容
func FromBytes(name string, data []byte) UploadSource {
	return UploadSource{Name: name, Reader: bytes.NewReader(data)}
}

// Workspace 上传工作目录，固定文件每次运行被覆盖
type Workspace struct {
	dir     string
	objects ObjectStorage
	logger  zerolog.Logger
}

// WorkspaceOption Workspace 的可选配置
type WorkspaceOption func(*Workspace)

// WithObjectMirror 保存后将原件归档到对象存储，失败只记日志
func WithObjectMirror(objects ObjectStorage) WorkspaceOption {
	return func(w *Workspace) {
		w.objects = objects
	}
}

// WithWorkspaceLogger 设置日志
func WithWorkspaceLogger(logger zerolog.Logger) WorkspaceOption {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// NewWorkspace 创建工作目录
func NewWorkspace(dir string, opts ...WorkspaceOption) (*Workspace, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建工作目录 %s 失败: %w", dir, err)
	}
	w := &Workspace{dir: dir, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "workspace").Logger()
	return w, nil
}

func (w *Workspace) Dir() string { return w.dir }

func (w *Workspace) JDPath() string { return filepath.Join(w.dir, constants.JDUploadFile) }

func (w *Workspace) ArchivePath() string { return filepath.Join(w.dir, constants.ResumeArchiveFile) }

func (w *Workspace) ResumesDir() string { return filepath.Join(w.dir, constants.ResumeExtractDir) }

// Save 将上传内容写入工作目录下的 relPath，返回完整路径
func (w *Workspace) Save(ctx context.Context, src UploadSource, relPath string) (string, error) {
	if src.Reader == nil {
		return "", fmt.Errorf("上传内容为空: %s", src.Name)
	}
	dst := filepath.Join(w.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("创建文件 %s 失败: %w", dst, err)
	}
	n, err := io.Copy(f, src.Reader)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("写入文件 %s 失败: %w", dst, err)
	}
	w.logger.Debug().Str("source", src.Name).Str("path", dst).Int64("bytes", n).Msg("上传内容已保存")

	w.mirror(ctx, relPath, dst)
	return dst, nil
}

// SaveJD 保存岗位描述到 uploads/jd.pdf
func (w *Workspace) SaveJD(ctx context.Context, src UploadSource) (string, error) {
	return w.Save(ctx, src, constants.JDUploadFile)
}

// SaveResumeArchive 保存简历压缩包到 uploads/resumes.zip
func (w *Workspace) SaveResumeArchive(ctx context.Context, src UploadSource) (string, error) {
	return w.Save(ctx, src, constants.ResumeArchiveFile)
}

func (w *Workspace) mirror(ctx context.Context, relPath, localPath string) {
	if w.objects == nil {
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		w.logger.Warn().Err(err).Msg("生成归档批次ID失败")
		return
	}
	kind := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	location, err := w.objects.ArchiveUpload(ctx, kind+"/"+id.String(), localPath)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", localPath).Msg("归档上传原件失败")
		return
	}
	w.logger.Debug().Str("location", location).Msg("原件已归档")
}

// ExtractArchive 清空 uploads/resumes 后解压 zipPath，返回所有解压出的文件路径
func (w *Workspace) ExtractArchive(zipPath string) ([]string, error) {
	target := w.ResumesDir()
	if err := os.RemoveAll(target); err != nil {
		return nil, fmt.Errorf("清理解压目录失败: %w", err)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("创建解压目录失败: %w", err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, types.NewInvalidArchiveError(zipPath, err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := extractEntry(entry, target); err != nil {
			return nil, types.NewInvalidArchiveError(zipPath, err)
		}
	}

	paths := []string{}
	err = filepath.WalkDir(target, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历解压目录失败: %w", err)
	}
	w.logger.Info().Str("archive", zipPath).Int("files", len(paths)).Msg("简历压缩包已解压")
	return paths, nil
}

func extractEntry(entry *zip.File, target string) error {
	dst := filepath.Join(target, entry.Name)
	rel, err := filepath.Rel(target, dst)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("压缩包条目越界: %s", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(dst, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("打开压缩包条目 %s 失败: %w", entry.Name, err)
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

type uploadFile struct {
	file *os.File
	size int64
}

func openForUpload(localPath string) (*uploadFile, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("打开待归档文件 %s 失败: %w", localPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}
	return &uploadFile{file: f, size: info.Size()}, nil
}
