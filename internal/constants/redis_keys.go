package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// EmbeddingModulePrefix 向量模块
	EmbeddingModulePrefix = "embedding"
	// HistoryModulePrefix 筛选历史模块
	HistoryModulePrefix = "history"

	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityVector 向量实体
	EntityVector = "vector"

	// KeyTextEmbedding 文本向量缓存 (HASH: vector, model_version)
	// 格式: app:embedding:vector:{md5(text)}
	KeyTextEmbedding = AppPrefix + ":" + EmbeddingModulePrefix + ":" + EntityVector + ":%s"

	// KeyHistoryLock 历史文件写锁 (STRING)
	// 格式: app:history:lock
	KeyHistoryLock = AppPrefix + ":" + HistoryModulePrefix + ":" + EntityLock
)
