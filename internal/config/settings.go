// Package config loads runtime settings from a config file, the environment and .env.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// EnvPrefix is prepended to every environment variable, e.g. YTBOT_BOT_TOKEN
const EnvPrefix = "YTBOT"

// Settings keys
const (
	KeyBotToken        = "bot_token"
	KeyAdminIDs        = "admin_ids"
	KeyDownloadDir     = "download_dir"
	KeyPublicBaseURL   = "public_base_url"
	KeyListenAddr      = "listen_addr"
	KeyMaxParallel     = "max_parallel_downloads"
	KeyRetention       = "retention"
	KeySweepInterval   = "sweep_interval"
	KeyDBDriver        = "db_driver"
	KeyDBDSN           = "db_dsn"
	KeyStorageBackend  = "storage_backend"
	KeyS3Bucket        = "s3_bucket"
	KeyS3Region        = "s3_region"
	KeyS3Endpoint      = "s3_endpoint"
	KeyS3AccessKey     = "s3_access_key"
	KeyS3SecretKey     = "s3_secret_key"
	KeyS3PathStyle     = "s3_path_style"
	KeyLinkSecret      = "link_secret"
	KeyRedisAddr       = "redis_addr"
	KeyRedisPassword   = "redis_password"
	KeyRedisDB         = "redis_db"
	KeyProbeArtifacts  = "probe_artifacts"
	KeyInstallYTDLP    = "install_ytdlp"
	KeyExtractTimeout  = "extract_timeout"
	KeyDebug           = "debug"
	KeyDefaultLanguage = "default_language"
)

// Default values
const (
	DefaultDownloadDir    = "./downloads"
	DefaultPublicBaseURL  = "http://localhost:8080"
	DefaultListenAddr     = ":8080"
	DefaultMaxParallel    = 2
	MinMaxParallel        = 1
	MaxMaxParallel        = 10
	DefaultRetention      = time.Hour
	DefaultSweepInterval  = 5 * time.Minute
	DefaultDBDriver       = "sqlite"
	DefaultDBDSN          = "ytbot.db"
	DefaultStorageBackend = StorageLocal
	DefaultS3Region       = "us-east-1"
	DefaultExtractTimeout = 60 * time.Second
	DefaultLanguage       = "en"
)

// Supported bot languages
const (
	LanguageEnglish = "en"
	LanguagePersian = "fa"
)

// Settings manages application configuration
type Settings struct {
	v *viper.Viper
}

// NewSettings wraps an existing viper instance
func NewSettings(v *viper.Viper) *Settings {
	if v == nil {
		v = viper.New()
	}
	return &Settings{v: v}
}

// Load reads .env, the optional config file and YTBOT_* environment variables
func Load(configFile string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] failed to load .env: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
		log.Printf("[INFO] loaded config from %s", v.ConfigFileUsed())
	}

	return NewSettings(v), nil
}

// GetBotToken returns the Telegram bot token
func (s *Settings) GetBotToken() string {
	return s.v.GetString(KeyBotToken)
}

// GetAdminIDs returns chat user ids allowed to run admin commands
func (s *Settings) GetAdminIDs() []int64 {
	var ids []int64
	for _, part := range strings.FieldsFunc(s.v.GetString(KeyAdminIDs), func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	}) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("[WARN] ignoring admin id %q: %v", part, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IsAdmin reports whether userID is listed as admin
func (s *Settings) IsAdmin(userID int64) bool {
	for _, id := range s.GetAdminIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

// GetDownloadDirectory returns the root of per-owner working directories
func (s *Settings) GetDownloadDirectory() string {
	if dir := s.v.GetString(KeyDownloadDir); dir != "" {
		return dir
	}
	return DefaultDownloadDir
}

// SetDownloadDirectory sets the download directory
func (s *Settings) SetDownloadDirectory(dir string) {
	s.v.Set(KeyDownloadDir, dir)
}

// GetPublicBaseURL returns the externally reachable base of download links
func (s *Settings) GetPublicBaseURL() string {
	if u := s.v.GetString(KeyPublicBaseURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultPublicBaseURL
}

// GetListenAddr returns the address of the link serving web layer
func (s *Settings) GetListenAddr() string {
	if addr := s.v.GetString(KeyListenAddr); addr != "" {
		return addr
	}
	return DefaultListenAddr
}

// GetMaxParallelDownloads returns the maximum number of parallel fetches
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.v.GetInt(KeyMaxParallel)
	if value <= 0 {
		return DefaultMaxParallel
	}
	return clampParallel(value)
}

// SetMaxParallelDownloads sets the maximum number of parallel fetches
func (s *Settings) SetMaxParallelDownloads(count int) {
	s.v.Set(KeyMaxParallel, clampParallel(count))
}

// GetRetention returns how long a produced link stays valid
func (s *Settings) GetRetention() time.Duration {
	return durationOr(s.v.GetDuration(KeyRetention), DefaultRetention)
}

// SetRetention sets the link retention
func (s *Settings) SetRetention(d time.Duration) {
	s.v.Set(KeyRetention, d)
}

// GetSweepInterval returns the period of the retention reaper
func (s *Settings) GetSweepInterval() time.Duration {
	return durationOr(s.v.GetDuration(KeySweepInterval), DefaultSweepInterval)
}

// GetExtractTimeout returns the timeout of metadata calls
func (s *Settings) GetExtractTimeout() time.Duration {
	return durationOr(s.v.GetDuration(KeyExtractTimeout), DefaultExtractTimeout)
}

// GetDBDriver returns the registry database driver
func (s *Settings) GetDBDriver() string {
	if d := s.v.GetString(KeyDBDriver); d != "" {
		return d
	}
	return DefaultDBDriver
}

// GetDBDSN returns the registry connection string
func (s *Settings) GetDBDSN() string {
	if dsn := s.v.GetString(KeyDBDSN); dsn != "" {
		return dsn
	}
	return DefaultDBDSN
}

// GetStorageBackend returns where artifacts are placed
func (s *Settings) GetStorageBackend() StorageBackend {
	switch StorageBackend(strings.ToLower(s.v.GetString(KeyStorageBackend))) {
	case StorageS3:
		return StorageS3
	case "", StorageLocal:
		return DefaultStorageBackend
	default:
		log.Printf("[WARN] unknown storage backend %q, using %s", s.v.GetString(KeyStorageBackend), DefaultStorageBackend)
		return DefaultStorageBackend
	}
}

// SetStorageBackend sets the storage backend
func (s *Settings) SetStorageBackend(b StorageBackend) {
	s.v.Set(KeyStorageBackend, string(b))
}

// S3Settings groups object storage parameters
type S3Settings struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// GetS3 returns object storage parameters
func (s *Settings) GetS3() S3Settings {
	region := s.v.GetString(KeyS3Region)
	if region == "" {
		region = DefaultS3Region
	}
	return S3Settings{
		Bucket:    s.v.GetString(KeyS3Bucket),
		Region:    region,
		Endpoint:  s.v.GetString(KeyS3Endpoint),
		AccessKey: s.v.GetString(KeyS3AccessKey),
		SecretKey: s.v.GetString(KeyS3SecretKey),
		PathStyle: s.v.GetBool(KeyS3PathStyle),
	}
}

// GetLinkSecret returns the HMAC secret of local download links
func (s *Settings) GetLinkSecret() string {
	return s.v.GetString(KeyLinkSecret)
}

// RedisSettings groups the optional redis connection
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// GetRedis returns redis parameters; an empty Addr disables redis
func (s *Settings) GetRedis() RedisSettings {
	return RedisSettings{
		Addr:     s.v.GetString(KeyRedisAddr),
		Password: s.v.GetString(KeyRedisPassword),
		DB:       s.v.GetInt(KeyRedisDB),
	}
}

// GetProbeArtifacts returns whether fetched files are checked with ffprobe
func (s *Settings) GetProbeArtifacts() bool {
	return s.v.GetBool(KeyProbeArtifacts)
}

// GetInstallYTDLP returns whether yt-dlp is installed at startup
func (s *Settings) GetInstallYTDLP() bool {
	return s.v.GetBool(KeyInstallYTDLP)
}

// GetDebug returns whether debug logging is on
func (s *Settings) GetDebug() bool {
	return s.v.GetBool(KeyDebug)
}

// SetDebug sets debug logging
func (s *Settings) SetDebug(debug bool) {
	s.v.Set(KeyDebug, debug)
}

// GetDefaultLanguage returns the language of users that never picked one.
// Unsupported values fall back to DefaultLanguage.
func (s *Settings) GetDefaultLanguage() string {
	lang := strings.ToLower(strings.TrimSpace(s.v.GetString(KeyDefaultLanguage)))
	if lang == "" {
		return DefaultLanguage
	}
	if _, ok := s.GetLanguageOptions()[lang]; !ok {
		log.Printf("[WARN] unsupported %s %q, using %s", KeyDefaultLanguage, lang, DefaultLanguage)
		return DefaultLanguage
	}
	return lang
}

// GetLanguageOptions returns available language options
func (s *Settings) GetLanguageOptions() map[string]string {
	return map[string]string{
		LanguageEnglish: "English",
		LanguagePersian: "فارسی",
	}
}

// NextLanguage returns the language the toggle switches to
func NextLanguage(current string) string {
	if current == LanguagePersian {
		return LanguageEnglish
	}
	return LanguagePersian
}

// ValidateServe checks the settings the serve command cannot run without
func (s *Settings) ValidateServe() error {
	var errs []error
	if s.GetBotToken() == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyBotToken))
	}
	switch s.GetStorageBackend() {
	case StorageLocal:
		if s.GetLinkSecret() == "" {
			errs = append(errs, fmt.Errorf("%s is required for local storage", KeyLinkSecret))
		}
	case StorageS3:
		if s.GetS3().Bucket == "" {
			errs = append(errs, fmt.Errorf("%s is required for s3 storage", KeyS3Bucket))
		}
	}
	return errors.Join(errs...)
}

func clampParallel(count int) int {
	if count < MinMaxParallel {
		count = MinMaxParallel
	}
	if count > MaxMaxParallel {
		count = MaxMaxParallel
	}
	return count
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
