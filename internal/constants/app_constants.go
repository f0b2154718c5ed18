package constants

import "time"

const (
	// VectorCacheDuration 向量缓存默认有效期
	VectorCacheDuration = 24 * time.Hour

	// 上传工作目录中的固定文件名
	JDUploadFile       = "jd.pdf"
	ResumeArchiveFile  = "resumes.zip"
	ResumeExtractDir   = "resumes"
	DefaultHistoryFile = "job_history.json"

	// ScreeningCompletedEventType 筛选完成事件类型
	ScreeningCompletedEventType = "screening.completed"
)
