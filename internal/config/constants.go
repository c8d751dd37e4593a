// internal/config/constants.go
package config

// アプリケーション情報
const (
	AppName    = "go_vocab_drill"
	AppVersion = "0.3.0"
)

// デフォルト設定値
const (
	DefaultServerPort  = ":8080"
	DefaultLogLevel    = "info"
	DefaultDailyTarget = 100
	DefaultMirror      = MirrorCSV
	DefaultCSVPath     = "data/vocab.csv"
	DefaultDebounceMs  = 300
	DefaultBackend     = BackendNone
	DefaultBatchSize   = 450
	MaxBatchSize       = 450
	DefaultAccount     = "local"
)

// ローカルミラーの種類
const (
	MirrorCSV      = "csv"
	MirrorSQLite   = "sqlite"
	MirrorPostgres = "postgres"
)

// リモートバックエンドの種類
const (
	BackendNone      = "none"
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
)

// DateLayout は start_date の書式
const DateLayout = "2006-01-02"
