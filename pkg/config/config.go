package config

import (
	"runtime"
	"time"
)

// ContainerShape selects how dialog message containers are located
type ContainerShape string

const (
	ShapeAuto     ContainerShape = "auto"      // By extension: .htm -> table_row, otherwise div
	ShapeDiv      ContainerShape = "div"       // <div class="im_in"> with download_photo_type anchors
	ShapeTableRow ContainerShape = "table_row" // <tr class="im_in"> with plain anchors
)

// Defaults matching the VK archive export layout
const (
	DefaultConcurrency        = 100
	DefaultPhotoDirName       = "photo"
	DefaultPhotoIndexTitle    = "Общий лист фотографий"
	DefaultPhotoIndexFileName = "photos.html"
	DefaultDialogFilePattern  = `history_.\d?\.htm`
	DefaultAttachmentDirName  = "Вложения"
	DefaultDialogDirName      = "Диалоги"
	DefaultGirlsDirName       = "Девочки"
	DefaultBoysDirName        = "Парни"
	DefaultAcceptHeader       = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9"
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.149 Safari/537.36"
)

// DefaultValidURLTrails are the URL suffixes accepted by the gate
var DefaultValidURLTrails = []string{".jpg", "type=album"}

// AppConfig holds the global application configuration
type AppConfig struct {
	Concurrency             int               `yaml:"concurrency"`                          // Global fetch permit count
	MaxRequestsPerHost      int               `yaml:"max_requests_per_host,omitempty"`      // 0 = no per-host limit
	DelayPerHost            time.Duration     `yaml:"delay_per_host,omitempty"`             // 0 = no politeness delay
	SemaphoreAcquireTimeout time.Duration     `yaml:"semaphore_acquire_timeout,omitempty"` // 0 = wait indefinitely
	MaxImageSizeBytes       int64             `yaml:"max_image_size_bytes,omitempty"`       // 0 = unlimited
	ExtractWorkers          int               `yaml:"extract_workers,omitempty"`            // Parallel document extraction
	PhotoDirName            string            `yaml:"photo_dir_name,omitempty"`
	ContainerShape          ContainerShape    `yaml:"container_shape,omitempty"`
	ValidURLTrails          []string          `yaml:"valid_url_trails,omitempty"`
	RequestHeaders          map[string]string `yaml:"request_headers,omitempty"`
	Classifier              ClassifierConfig  `yaml:"classifier"`
	Sources                 SourcesConfig     `yaml:"sources"`
	HTTPClientSettings      HTTPClientConfig  `yaml:"http_client_settings,omitempty"`
}

// ClassifierConfig holds the document classification rules
type ClassifierConfig struct {
	PhotoIndexTitle    string `yaml:"photo_index_title"`     // <title> of the shared photo list
	PhotoIndexFileName string `yaml:"photo_index_file_name"` // Exact base name of the photo list
	DialogFilePattern  string `yaml:"dialog_file_pattern"`   // Regexp searched in dialog base names
}

// SourcesConfig selects which parts of an archive tree are processed in auto mode
type SourcesConfig struct {
	AttachmentDirName string `yaml:"attachment_dir_name"`
	DialogDirName     string `yaml:"dialog_dir_name"`
	GirlsDirName      string `yaml:"girls_dir_name"`
	BoysDirName       string `yaml:"boys_dir_name"`
	AttachmentGirls   bool   `yaml:"attachment_girls"`
	AttachmentBoys    bool   `yaml:"attachment_boys"`
	ChatGirls         bool   `yaml:"chat_girls"`
	ChatBoys          bool   `yaml:"chat_boys"`
}

// AnyEnabled reports whether at least one source category is included
func (s SourcesConfig) AnyEnabled() bool {
	return s.AttachmentGirls || s.AttachmentBoys || s.ChatGirls || s.ChatBoys
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// Default returns a configuration with every default applied
func Default() *AppConfig {
	cfg := &AppConfig{}
	_, _ = cfg.Validate() // defaults alone never fail
	return cfg
}

// DefaultRequestHeaders returns a fresh copy of the browser-like headers sent with every fetch
func DefaultRequestHeaders() map[string]string {
	return map[string]string{
		"Accept":     DefaultAcceptHeader,
		"User-Agent": DefaultUserAgent,
	}
}

// defaultExtractWorkers bounds parallel document parsing
func defaultExtractWorkers() int {
	return runtime.NumCPU()
}
