package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StorageProviderLocal = "local"
	StorageProviderS3    = "s3"

	CatalogDriverPostgres = "postgresql"
	CatalogDriverMemory   = "memory"

	DefaultMaxUploadSize = 10 << 20
)

type ConfigParam struct {
	ServerPort      string          `toml:"server_port"`
	BaseURL         string          `toml:"base_url"`
	HandleCORS      bool            `toml:"handle_cors"`
	CORSOrigins     []string        `toml:"cors_origins"`
	APISecret       string          `toml:"api_secret"`
	APISecretHash   string          `toml:"api_secret_hash"`
	MaxUploadSize   int64           `toml:"max_upload_size"`
	DefaultPageSize int             `toml:"default_page_size"`
	MaxPageSize     int             `toml:"max_page_size"`
	SourceRepoURL   string          `toml:"source_repo_url"`
	Storage         StorageConfig   `toml:"storage"`
	Catalog         CatalogConfig   `toml:"catalog"`
	GitHub          GitHubConfig    `toml:"github"`
	Trending        TrendingConfig  `toml:"trending"`
	Downloads       DownloadsConfig `toml:"downloads"`
	Log             LogConfig       `toml:"log"`
}

type StorageConfig struct {
	Provider string             `toml:"provider"`
	Local    LocalStorageConfig `toml:"local"`
	S3       S3StorageConfig    `toml:"s3"`
}

type LocalStorageConfig struct {
	BasePath string `toml:"base_path"`
	BaseURL  string `toml:"base_url"`
}

type S3StorageConfig struct {
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Endpoint        string `toml:"endpoint"`
	ForcePathStyle  bool   `toml:"force_path_style"`
	URLExpiration   string `toml:"url_expiration"`
}

// URLExpiry is the lifetime of presigned URLs. Defaults to one hour.
func (c S3StorageConfig) URLExpiry() time.Duration {
	if d, err := time.ParseDuration(c.URLExpiration); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

type CatalogConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	DBName   string `toml:"dbname"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`
	DSN      string `toml:"dsn"`
}

// ConnString returns the explicit dsn if set, otherwise one built from the individual fields.
func (c CatalogConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type GitHubConfig struct {
	Token   string `toml:"token"`
	APIURL  string `toml:"api_url"`
	Timeout string `toml:"timeout"`
}

func (c GitHubConfig) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

type TrendingConfig struct {
	Interval string `toml:"interval"`
}

// RefreshInterval returns how often the ranker runs on its own. Zero disables the schedule.
func (c TrendingConfig) RefreshInterval() time.Duration {
	if c.Interval == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d < 0 {
		return time.Hour
	}
	return d
}

type DownloadsConfig struct {
	MaxTrackedExtensions   int `toml:"max_tracked_extensions"`
	MaxClientsPerExtension int `toml:"max_clients_per_extension"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the process configuration. Used by tests and tools that build config in code.
func SetConfig(c *ConfigParam) {
	c.applyDefaults()
	cfg = c
}

func LoadConfig(filename string) error {
	var cp ConfigParam
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), &cp); err != nil {
			return fmt.Errorf("error parsing config file: %v", err)
		}
	} else {
		cp.HandleCORS = true
	}
	cp.applyEnv()
	cp.applyDefaults()
	if err := cp.validate(); err != nil {
		return err
	}
	// assign config to global cfg
	cfg = &cp
	return nil
}

func (c *ConfigParam) applyEnv() {
	envString("STORE_SERVER_PORT", &c.ServerPort)
	envString("STORE_BASE_URL", &c.BaseURL)
	envString("API_SECRET", &c.APISecret)
	envString("STORE_API_SECRET", &c.APISecret)
	envString("STORE_API_SECRET_HASH", &c.APISecretHash)
	envString("STORE_STORAGE_PROVIDER", &c.Storage.Provider)
	envString("S3_ACCESS_KEY_ID", &c.Storage.S3.AccessKeyID)
	envString("S3_SECRET_ACCESS_KEY", &c.Storage.S3.SecretAccessKey)
	envString("S3_BUCKET", &c.Storage.S3.Bucket)
	envString("S3_REGION", &c.Storage.S3.Region)
	envString("S3_ENDPOINT", &c.Storage.S3.Endpoint)
	envString("STORE_DB_DSN", &c.Catalog.DSN)
	envString("GITHUB_TOKEN", &c.GitHub.Token)
	envString("STORE_LOG_LEVEL", &c.Log.Level)
	if v := os.Getenv("STORE_MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxUploadSize = n
		}
	}
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func (c *ConfigParam) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = "3000"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:" + c.ServerPort
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = DefaultMaxUploadSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 200
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 100
	}
	if c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = c.MaxPageSize
	}
	if c.SourceRepoURL == "" {
		c.SourceRepoURL = "https://github.com/vicinaehq/extensions/tree/main/extensions"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = StorageProviderLocal
	}
	if c.Storage.Local.BasePath == "" {
		c.Storage.Local.BasePath = "./storage"
	}
	if c.Storage.Local.BaseURL == "" {
		c.Storage.Local.BaseURL = c.BaseURL + "/storage"
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = CatalogDriverPostgres
	}
	if c.Catalog.Host == "" {
		c.Catalog.Host = "localhost"
	}
	if c.Catalog.Port == 0 {
		c.Catalog.Port = 5432
	}
	if c.Catalog.DBName == "" {
		c.Catalog.DBName = "vicinae"
	}
	if c.Catalog.User == "" {
		c.Catalog.User = "vicinae"
	}
	if c.Catalog.SSLMode == "" {
		c.Catalog.SSLMode = "disable"
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = "https://api.github.com"
	}
	if c.Downloads.MaxTrackedExtensions <= 0 {
		c.Downloads.MaxTrackedExtensions = 10000
	}
	if c.Downloads.MaxClientsPerExtension <= 0 {
		c.Downloads.MaxClientsPerExtension = 50000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *ConfigParam) validate() error {
	switch c.Storage.Provider {
	case StorageProviderLocal:
	case StorageProviderS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 provider")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Catalog.Driver {
	case CatalogDriverPostgres, CatalogDriverMemory:
	default:
		return fmt.Errorf("unknown catalog driver: %s", c.Catalog.Driver)
	}
	return nil
}

func init() {
	err := LoadConfig("")
	if err != nil {
		panic(err)
	}
}
