package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"amd-server/pkg/amd"
	"amd-server/pkg/errors"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config represents the complete application configuration
type Config struct {
	AMD       AMDConfig       `json:"amd"`
	Campaign  CampaignConfig  `json:"campaign"`
	STT       STTConfig       `json:"stt"`
	Messaging MessagingConfig `json:"messaging"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Storage   StorageConfig   `json:"storage"`
	Dialer    DialerConfig    `json:"dialer"`
	HTTP      HTTPConfig      `json:"http"`
	Logging   LoggingConfig   `json:"logging"`
}

// AMDConfig holds detector settings
type AMDConfig struct {
	SensitivityLevel       float64       `json:"sensitivity_level" env:"AMD_SENSITIVITY" default:"0.75"`
	MaxDetectionTime       time.Duration `json:"max_detection_time" env:"AMD_MAX_DETECTION_TIME" default:"3s"`
	AccuracyThreshold      float64       `json:"accuracy_threshold" env:"AMD_ACCURACY_THRESHOLD" default:"0.85"`
	FalsePositiveThreshold float64       `json:"false_positive_threshold" env:"AMD_FALSE_POSITIVE_THRESHOLD" default:"0.05"`

	// Extra Malayalam greetings, comma separated, appended to the built-in list
	MalayalamGreetings []string `json:"malayalam_greetings" env:"AMD_MALAYALAM_GREETINGS"`

	MalayalamPatterns       bool `json:"malayalam_patterns" env:"AMD_MALAYALAM_PATTERNS" default:"true"`
	CulturalAdaptation      bool `json:"cultural_adaptation" env:"AMD_CULTURAL_ADAPTATION" default:"true"`
	RealTimeProcessing      bool `json:"real_time_processing" env:"AMD_REALTIME_PROCESSING" default:"true"`
	DialectRecognition      bool `json:"dialect_recognition" env:"AMD_DIALECT_RECOGNITION" default:"true"`
	FestivalAwareness       bool `json:"festival_awareness" env:"AMD_FESTIVAL_AWARENESS" default:"true"`
	BusinessHoursAdaptation bool `json:"business_hours_adaptation" env:"AMD_BUSINESS_HOURS" default:"true"`
	CorrectedSensitivity    bool `json:"corrected_sensitivity" env:"AMD_CORRECTED_SENSITIVITY" default:"false"`
}

// CampaignConfig holds defaults for campaigns created by the binary
type CampaignConfig struct {
	Name               string        `json:"name" env:"CAMPAIGN_NAME" default:"default"`
	PrimaryLanguage    string        `json:"primary_language" env:"CAMPAIGN_LANGUAGE" default:"ml"`
	Region             string        `json:"region" env:"CAMPAIGN_REGION" default:"kerala"`
	TimeZone           string        `json:"time_zone" env:"CAMPAIGN_TIMEZONE" default:"Asia/Kolkata"`
	BusinessHoursStart int           `json:"business_hours_start" env:"CAMPAIGN_BUSINESS_HOURS_START" default:"9"`
	BusinessHoursEnd   int           `json:"business_hours_end" env:"CAMPAIGN_BUSINESS_HOURS_END" default:"18"`
	RetryInterval      time.Duration `json:"retry_interval" env:"CAMPAIGN_RETRY_INTERVAL" default:"1h"`
	MaxAttempts        int           `json:"max_attempts" env:"CAMPAIGN_MAX_ATTEMPTS" default:"3"`
	TransferNumber     string        `json:"transfer_number" env:"CAMPAIGN_TRANSFER_NUMBER"`

	MachineMessageML string `json:"machine_message_ml" env:"CAMPAIGN_MACHINE_MESSAGE_ML"`
	MachineMessageEN string `json:"machine_message_en" env:"CAMPAIGN_MACHINE_MESSAGE_EN"`
	HumanMessageML   string `json:"human_message_ml" env:"CAMPAIGN_HUMAN_MESSAGE_ML"`
	HumanMessageEN   string `json:"human_message_en" env:"CAMPAIGN_HUMAN_MESSAGE_EN"`
}

// STTConfig holds transcription settings
type STTConfig struct {
	// Timeout bounds a single transcription request
	Timeout time.Duration `json:"timeout" env:"STT_TIMEOUT" default:"2s"`

	Deepgram DeepgramSTTConfig `json:"deepgram"`
}

// DeepgramSTTConfig holds Deepgram Speech-to-Text configuration
type DeepgramSTTConfig struct {
	Enabled  bool   `json:"enabled" env:"DEEPGRAM_STT_ENABLED" default:"false"`
	APIKey   string `json:"api_key" env:"DEEPGRAM_API_KEY"`
	APIURL   string `json:"api_url" env:"DEEPGRAM_API_URL" default:"https://api.deepgram.com/v1/listen"`
	Model    string `json:"model" env:"DEEPGRAM_MODEL" default:"nova-2"`
	Language string `json:"language" env:"DEEPGRAM_LANGUAGE" default:"multi"`
}

// MessagingConfig holds AMQP settings for message delivery
type MessagingConfig struct {
	AMQPUrl          string        `json:"amqp_url" env:"AMQP_URL"`
	AMQPQueueName    string        `json:"amqp_queue_name" env:"AMQP_QUEUE_NAME" default:"amd_messages"`
	AMQPExchangeName string        `json:"amqp_exchange_name" env:"AMQP_EXCHANGE_NAME"`
	AMQPRoutingKey   string        `json:"amqp_routing_key" env:"AMQP_ROUTING_KEY"`
	ConnectTimeout   time.Duration `json:"connect_timeout" env:"AMQP_CONNECT_TIMEOUT" default:"5s"`
}

// Enabled reports whether an AMQP broker is configured
func (m MessagingConfig) Enabled() bool {
	return m.AMQPUrl != "" && m.AMQPQueueName != ""
}

// DeliveryConfig holds retry settings for message delivery
type DeliveryConfig struct {
	MaxAttempts       int           `json:"max_attempts" env:"DELIVERY_MAX_ATTEMPTS" default:"3"`
	AttemptTimeout    time.Duration `json:"attempt_timeout" env:"DELIVERY_ATTEMPT_TIMEOUT" default:"2s"`
	InitialBackoff    time.Duration `json:"initial_backoff" env:"DELIVERY_INITIAL_BACKOFF" default:"200ms"`
	BackoffMultiplier float64       `json:"backoff_multiplier" env:"DELIVERY_BACKOFF_MULTIPLIER" default:"2.0"`
	MaxBackoff        time.Duration `json:"max_backoff" env:"DELIVERY_MAX_BACKOFF" default:"5s"`
	DeadLetter        bool          `json:"dead_letter" env:"DELIVERY_DEAD_LETTER" default:"true"`
}

// StorageConfig holds campaign store settings
type StorageConfig struct {
	// Type is "memory" or "badger"
	Type string `json:"type" env:"STORAGE_TYPE" default:"badger"`
	Path string `json:"path" env:"STORAGE_PATH" default:"./data"`
	// InMemory keeps badger off disk
	InMemory bool `json:"in_memory" env:"STORAGE_IN_MEMORY" default:"false"`
}

// DialerConfig sizes the call worker pool
type DialerConfig struct {
	Workers     int           `json:"workers" env:"DIALER_WORKERS" default:"0"`
	CallTimeout time.Duration `json:"call_timeout" env:"DIALER_CALL_TIMEOUT" default:"10s"`

	// Per-campaign pacing; zero disables it
	CallsPerSecond float64 `json:"calls_per_second" env:"DIALER_CALLS_PER_SECOND" default:"0"`
	Burst          int     `json:"burst" env:"DIALER_BURST" default:"10"`
}

// HTTPConfig holds the metrics endpoint settings
type HTTPConfig struct {
	Port          int           `json:"port" env:"HTTP_PORT" default:"8080"`
	Enabled       bool          `json:"enabled" env:"HTTP_ENABLED" default:"true"`
	EnableMetrics bool          `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`
	MetricsPath   string        `json:"metrics_path" env:"METRICS_PATH" default:"/metrics"`
	ReadTimeout   time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout  time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"LOG_FORMAT" default:"json"`
	OutputFile string `json:"output_file" env:"LOG_OUTPUT_FILE"`
}

// Load loads the configuration from environment variables or .env file
func Load(logger *logrus.Logger) (*Config, error) {
	loadEnvFile(logger)

	config := &Config{}

	if err := loadAMDConfig(logger, &config.AMD); err != nil {
		return nil, errors.Wrap(err, "failed to load AMD configuration")
	}

	if err := loadCampaignConfig(logger, &config.Campaign); err != nil {
		return nil, errors.Wrap(err, "failed to load campaign configuration")
	}

	if err := loadSTTConfig(logger, &config.STT); err != nil {
		return nil, errors.Wrap(err, "failed to load STT configuration")
	}

	if err := loadMessagingConfig(logger, &config.Messaging); err != nil {
		return nil, errors.Wrap(err, "failed to load messaging configuration")
	}

	if err := loadDeliveryConfig(logger, &config.Delivery); err != nil {
		return nil, errors.Wrap(err, "failed to load delivery configuration")
	}

	if err := loadStorageConfig(logger, &config.Storage); err != nil {
		return nil, errors.Wrap(err, "failed to load storage configuration")
	}

	if err := loadDialerConfig(logger, &config.Dialer); err != nil {
		return nil, errors.Wrap(err, "failed to load dialer configuration")
	}

	if err := loadHTTPConfig(logger, &config.HTTP); err != nil {
		return nil, errors.Wrap(err, "failed to load HTTP configuration")
	}

	if err := loadLoggingConfig(logger, &config.Logging); err != nil {
		return nil, errors.Wrap(err, "failed to load logging configuration")
	}

	if err := validateConfig(logger, config); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	if err := ensureDirectories(logger, config); err != nil {
		return nil, errors.Wrap(err, "failed to create required directories")
	}

	return config, nil
}

// loadEnvFile looks for a .env file near the working directory
func loadEnvFile(logger *logrus.Logger) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr != nil {
			continue
		}
		absPath, _ := filepath.Abs(envFile)
		logger.WithField("path", absPath).Debug("Attempting to load .env file")

		if loadErr := godotenv.Load(envFile); loadErr == nil {
			loadedFrom = absPath
			break
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Successfully loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Debug("No .env file found, using environment variables only")
	}
}

// loadAMDConfig loads the detector section
func loadAMDConfig(logger *logrus.Logger, config *AMDConfig) error {
	defaults := amd.DefaultConfiguration()

	config.SensitivityLevel = getEnvFloat("AMD_SENSITIVITY", defaults.SensitivityLevel)
	if config.SensitivityLevel < 0.1 || config.SensitivityLevel > 1.0 {
		logger.Warnf("Invalid AMD_SENSITIVITY %v, must be within [0.1, 1.0], using default %v", config.SensitivityLevel, defaults.SensitivityLevel)
		config.SensitivityLevel = defaults.SensitivityLevel
	}

	config.MaxDetectionTime = getEnvDuration("AMD_MAX_DETECTION_TIME", defaults.MaxDetectionTime)
	if config.MaxDetectionTime <= 0 {
		logger.Warn("AMD_MAX_DETECTION_TIME must be positive, using default: 3s")
		config.MaxDetectionTime = defaults.MaxDetectionTime
	}

	config.AccuracyThreshold = getEnvFloat("AMD_ACCURACY_THRESHOLD", defaults.AccuracyThreshold)
	config.FalsePositiveThreshold = getEnvFloat("AMD_FALSE_POSITIVE_THRESHOLD", defaults.FalsePositiveThreshold)
	config.MalayalamGreetings = getEnvList("AMD_MALAYALAM_GREETINGS")

	config.MalayalamPatterns = getEnvBool("AMD_MALAYALAM_PATTERNS", defaults.MalayalamPatterns)
	config.CulturalAdaptation = getEnvBool("AMD_CULTURAL_ADAPTATION", defaults.CulturalAdaptation)
	config.RealTimeProcessing = getEnvBool("AMD_REALTIME_PROCESSING", defaults.RealTimeProcessing)
	config.DialectRecognition = getEnvBool("AMD_DIALECT_RECOGNITION", defaults.DialectRecognition)
	config.FestivalAwareness = getEnvBool("AMD_FESTIVAL_AWARENESS", defaults.FestivalAwareness)
	config.BusinessHoursAdaptation = getEnvBool("AMD_BUSINESS_HOURS", defaults.BusinessHoursAdaptation)
	config.CorrectedSensitivity = getEnvBool("AMD_CORRECTED_SENSITIVITY", false)

	return nil
}

// loadCampaignConfig loads campaign defaults
func loadCampaignConfig(logger *logrus.Logger, config *CampaignConfig) error {
	config.Name = getEnv("CAMPAIGN_NAME", "default")

	config.PrimaryLanguage = strings.ToLower(getEnv("CAMPAIGN_LANGUAGE", "ml"))
	if config.PrimaryLanguage != "ml" && config.PrimaryLanguage != "en" {
		logger.Warnf("Invalid CAMPAIGN_LANGUAGE '%s', must be 'ml' or 'en', defaulting to 'ml'", config.PrimaryLanguage)
		config.PrimaryLanguage = "ml"
	}

	config.Region = getEnv("CAMPAIGN_REGION", "kerala")

	config.TimeZone = getEnv("CAMPAIGN_TIMEZONE", "Asia/Kolkata")
	if _, err := time.LoadLocation(config.TimeZone); err != nil {
		logger.Warnf("Unknown CAMPAIGN_TIMEZONE '%s', defaulting to 'Asia/Kolkata'", config.TimeZone)
		config.TimeZone = "Asia/Kolkata"
	}

	config.BusinessHoursStart = getEnvInt("CAMPAIGN_BUSINESS_HOURS_START", 9)
	config.BusinessHoursEnd = getEnvInt("CAMPAIGN_BUSINESS_HOURS_END", 18)
	if config.BusinessHoursStart < 0 || config.BusinessHoursEnd > 24 || config.BusinessHoursStart >= config.BusinessHoursEnd {
		logger.Warnf("Invalid business hours %d-%d, using default: 9-18", config.BusinessHoursStart, config.BusinessHoursEnd)
		config.BusinessHoursStart = 9
		config.BusinessHoursEnd = 18
	}

	config.RetryInterval = getEnvDuration("CAMPAIGN_RETRY_INTERVAL", time.Hour)
	if config.RetryInterval <= 0 {
		logger.Warn("CAMPAIGN_RETRY_INTERVAL must be positive, using default: 1h")
		config.RetryInterval = time.Hour
	}

	config.MaxAttempts = getEnvInt("CAMPAIGN_MAX_ATTEMPTS", 3)
	if config.MaxAttempts <= 0 {
		logger.Warn("CAMPAIGN_MAX_ATTEMPTS must be positive, using default: 3")
		config.MaxAttempts = 3
	}

	config.TransferNumber = getEnv("CAMPAIGN_TRANSFER_NUMBER", "")

	config.MachineMessageML = getEnv("CAMPAIGN_MACHINE_MESSAGE_ML", "നമസ്കാരം, ഞങ്ങൾ പിന്നീട് വീണ്ടും വിളിക്കാം. നന്ദി.")
	config.MachineMessageEN = getEnv("CAMPAIGN_MACHINE_MESSAGE_EN", "Hello, sorry we missed you. We will call you back later. Thank you.")
	config.HumanMessageML = getEnv("CAMPAIGN_HUMAN_MESSAGE_ML", "നമസ്കാരം, ഒരു നിമിഷം ദയവായി കാത്തിരിക്കൂ.")
	config.HumanMessageEN = getEnv("CAMPAIGN_HUMAN_MESSAGE_EN", "Hello, please hold for a moment.")

	return nil
}

// loadSTTConfig loads the transcription section
func loadSTTConfig(logger *logrus.Logger, config *STTConfig) error {
	config.Timeout = getEnvDuration("STT_TIMEOUT", 2*time.Second)
	if config.Timeout <= 0 {
		logger.Warn("STT_TIMEOUT must be positive, using default: 2s")
		config.Timeout = 2 * time.Second
	}

	config.Deepgram.APIKey = getEnv("DEEPGRAM_API_KEY", "")
	config.Deepgram.Enabled = getEnvBool("DEEPGRAM_STT_ENABLED", config.Deepgram.APIKey != "")
	config.Deepgram.APIURL = getEnv("DEEPGRAM_API_URL", "https://api.deepgram.com/v1/listen")
	config.Deepgram.Model = getEnv("DEEPGRAM_MODEL", "nova-2")
	config.Deepgram.Language = getEnv("DEEPGRAM_LANGUAGE", "multi")

	if config.Deepgram.Enabled && config.Deepgram.APIKey == "" {
		logger.Warn("DEEPGRAM_STT_ENABLED is set but DEEPGRAM_API_KEY is empty, disabling Deepgram")
		config.Deepgram.Enabled = false
	}

	return nil
}

// loadMessagingConfig loads the messaging configuration section
func loadMessagingConfig(logger *logrus.Logger, config *MessagingConfig) error {
	config.AMQPUrl = getEnv("AMQP_URL", "")
	config.AMQPQueueName = getEnv("AMQP_QUEUE_NAME", "amd_messages")
	config.AMQPExchangeName = getEnv("AMQP_EXCHANGE_NAME", "")
	config.AMQPRoutingKey = getEnv("AMQP_ROUTING_KEY", "")

	config.ConnectTimeout = getEnvDuration("AMQP_CONNECT_TIMEOUT", 5*time.Second)
	if config.ConnectTimeout <= 0 {
		logger.Warn("Invalid AMQP_CONNECT_TIMEOUT value, using default: 5s")
		config.ConnectTimeout = 5 * time.Second
	}

	if config.AMQPUrl != "" && !strings.HasPrefix(config.AMQPUrl, "amqp://") && !strings.HasPrefix(config.AMQPUrl, "amqps://") {
		logger.Warnf("AMQP_URL '%s' does not look like an amqp:// URL", config.AMQPUrl)
	}

	return nil
}

// loadDeliveryConfig loads the delivery retry section
func loadDeliveryConfig(logger *logrus.Logger, config *DeliveryConfig) error {
	config.MaxAttempts = getEnvInt("DELIVERY_MAX_ATTEMPTS", 3)
	if config.MaxAttempts < 1 {
		logger.Warn("DELIVERY_MAX_ATTEMPTS must be at least 1, using default: 3")
		config.MaxAttempts = 3
	}

	config.AttemptTimeout = getEnvDuration("DELIVERY_ATTEMPT_TIMEOUT", 2*time.Second)
	config.InitialBackoff = getEnvDuration("DELIVERY_INITIAL_BACKOFF", 200*time.Millisecond)
	config.MaxBackoff = getEnvDuration("DELIVERY_MAX_BACKOFF", 5*time.Second)

	config.BackoffMultiplier = getEnvFloat("DELIVERY_BACKOFF_MULTIPLIER", 2.0)
	if config.BackoffMultiplier < 1.0 {
		logger.Warn("DELIVERY_BACKOFF_MULTIPLIER must be >= 1.0, using default: 2.0")
		config.BackoffMultiplier = 2.0
	}

	config.DeadLetter = getEnvBool("DELIVERY_DEAD_LETTER", true)

	return nil
}

// loadStorageConfig loads the campaign store section
func loadStorageConfig(logger *logrus.Logger, config *StorageConfig) error {
	config.Type = strings.ToLower(getEnv("STORAGE_TYPE", "badger"))
	if config.Type != "memory" && config.Type != "badger" {
		logger.Warnf("Invalid STORAGE_TYPE '%s', must be 'memory' or 'badger', defaulting to 'badger'", config.Type)
		config.Type = "badger"
	}

	config.Path = getEnv("STORAGE_PATH", "./data")
	config.InMemory = getEnvBool("STORAGE_IN_MEMORY", false)

	return nil
}

// loadDialerConfig loads the dialer section
func loadDialerConfig(logger *logrus.Logger, config *DialerConfig) error {
	config.Workers = getEnvInt("DIALER_WORKERS", 0)
	if config.Workers < 0 {
		logger.Warn("DIALER_WORKERS must not be negative, using one worker per CPU")
		config.Workers = 0
	}

	config.CallTimeout = getEnvDuration("DIALER_CALL_TIMEOUT", 10*time.Second)

	config.CallsPerSecond = getEnvFloat("DIALER_CALLS_PER_SECOND", 0)
	if config.CallsPerSecond < 0 {
		logger.Warn("DIALER_CALLS_PER_SECOND must not be negative, disabling pacing")
		config.CallsPerSecond = 0
	}
	config.Burst = getEnvInt("DIALER_BURST", 10)
	if config.Burst < 1 {
		logger.Warn("DIALER_BURST must be at least 1, using default: 10")
		config.Burst = 10
	}

	return nil
}

// loadHTTPConfig loads the HTTP section
func loadHTTPConfig(logger *logrus.Logger, config *HTTPConfig) error {
	config.Port = getEnvInt("HTTP_PORT", 8080)
	if config.Port < 1 || config.Port > 65535 {
		logger.Warnf("Invalid HTTP_PORT %d, using default: 8080", config.Port)
		config.Port = 8080
	}

	config.Enabled = getEnvBool("HTTP_ENABLED", true)
	config.EnableMetrics = getEnvBool("HTTP_ENABLE_METRICS", true)

	config.MetricsPath = getEnv("METRICS_PATH", "/metrics")
	if !strings.HasPrefix(config.MetricsPath, "/") {
		config.MetricsPath = "/" + config.MetricsPath
	}

	config.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	config.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)

	return nil
}

// loadLoggingConfig loads the logging configuration section
func loadLoggingConfig(logger *logrus.Logger, config *LoggingConfig) error {
	config.Level = getEnv("LOG_LEVEL", "info")

	_, err := logrus.ParseLevel(config.Level)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to 'info'", config.Level)
		config.Level = "info"
	}

	config.Format = getEnv("LOG_FORMAT", "json")
	if config.Format != "json" && config.Format != "text" {
		logger.Warn("Invalid LOG_FORMAT, must be 'json' or 'text', defaulting to 'json'")
		config.Format = "json"
	}

	config.OutputFile = getEnv("LOG_OUTPUT_FILE", "")

	return nil
}

// validateConfig performs cross-section validation of the configuration
func validateConfig(logger *logrus.Logger, config *Config) error {
	if config.Delivery.InitialBackoff > config.Delivery.MaxBackoff {
		return errors.New(fmt.Sprintf("DELIVERY_INITIAL_BACKOFF %s exceeds DELIVERY_MAX_BACKOFF %s",
			config.Delivery.InitialBackoff, config.Delivery.MaxBackoff))
	}

	if config.STT.Deepgram.Enabled && config.STT.Timeout >= config.AMD.MaxDetectionTime {
		logger.Warn("STT_TIMEOUT is not shorter than AMD_MAX_DETECTION_TIME; slow transcriptions will time out the whole detection")
	}

	if config.Dialer.CallTimeout > 0 && config.Dialer.CallTimeout < config.AMD.MaxDetectionTime {
		return errors.New(fmt.Sprintf("DIALER_CALL_TIMEOUT %s is shorter than AMD_MAX_DETECTION_TIME %s",
			config.Dialer.CallTimeout, config.AMD.MaxDetectionTime))
	}

	if config.Campaign.MachineMessageML == "" && config.Campaign.MachineMessageEN == "" {
		logger.Warn("No machine message configured; machine-answered calls will not get a message")
	}

	if !config.Messaging.Enabled() {
		logger.Info("AMQP_URL not set, messages are delivered to the in-memory channel")
	}

	if config.Logging.OutputFile != "" {
		f, err := os.OpenFile(config.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("cannot write to log file: %s", config.Logging.OutputFile))
		}
		f.Close()
	}

	return nil
}

// ensureDirectories ensures that required directories exist
func ensureDirectories(logger *logrus.Logger, config *Config) error {
	if config.Storage.Type != "badger" || config.Storage.InMemory {
		return nil
	}
	if err := os.MkdirAll(config.Storage.Path, 0755); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to create storage directory: %s", config.Storage.Path))
	}
	logger.WithField("path", config.Storage.Path).Debug("Storage directory ready")
	return nil
}

// DetectorConfiguration converts the AMD section into a detector configuration
func (c *Config) DetectorConfiguration() amd.Configuration {
	cfg := amd.DefaultConfiguration()
	cfg.SensitivityLevel = c.AMD.SensitivityLevel
	cfg.MaxDetectionTime = c.AMD.MaxDetectionTime
	cfg.AccuracyThreshold = c.AMD.AccuracyThreshold
	cfg.FalsePositiveThreshold = c.AMD.FalsePositiveThreshold
	cfg.MalayalamGreetingDatabase = append(cfg.MalayalamGreetingDatabase, c.AMD.MalayalamGreetings...)
	cfg.MalayalamPatterns = c.AMD.MalayalamPatterns
	cfg.CulturalAdaptation = c.AMD.CulturalAdaptation
	cfg.RealTimeProcessing = c.AMD.RealTimeProcessing
	cfg.DialectRecognition = c.AMD.DialectRecognition
	cfg.FestivalAwareness = c.AMD.FestivalAwareness
	cfg.BusinessHoursAdaptation = c.AMD.BusinessHoursAdaptation
	cfg.CorrectedSensitivity = c.AMD.CorrectedSensitivity
	return cfg
}

// ApplyLogging applies the configuration to the logger
func (c *Config) ApplyLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}
	logger.SetLevel(level)

	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if c.Logging.OutputFile != "" {
		f, err := os.OpenFile(c.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to open log file: %s", c.Logging.OutputFile))
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return nil
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// Helper function to get a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getEnvFloat retrieves an environment variable and converts it to float64
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
