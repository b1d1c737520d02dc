package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "GALLINAPP_APP_ENV"
	EnvDBDSN  = "GALLINAPP_DB_DSN"
	EnvDBHost = "GALLINAPP_DB_HOST"
	EnvDBUser = "GALLINAPP_DB_USER"
	EnvDBName = "GALLINAPP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	Tiers    TierConfig
	Welfare  WelfareConfig
	Pipeline PipelineConfig
	Push     PushConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Eventing EventingConfig
	Features FeatureFlags
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GALLINAPP_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"GALLINAPP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GALLINAPP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GALLINAPP_SERVICE_KIND" default:"sweep-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"GALLINAPP_DB_DSN"`
	Driver string `envconfig:"GALLINAPP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GALLINAPP_DB_HOST"`
	LegacyPort     int    `envconfig:"GALLINAPP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GALLINAPP_DB_USER"`
	LegacyPassword string `envconfig:"GALLINAPP_DB_PASSWORD"`
	LegacyName     string `envconfig:"GALLINAPP_DB_NAME"`
	LegacySSLMode  string `envconfig:"GALLINAPP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GALLINAPP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GALLINAPP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GALLINAPP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GALLINAPP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GALLINAPP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GALLINAPP_REDIS_ADDR"`
	Password     string        `envconfig:"GALLINAPP_REDIS_PASSWORD"`
	DB           int           `envconfig:"GALLINAPP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GALLINAPP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GALLINAPP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GALLINAPP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GALLINAPP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GALLINAPP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// TierConfig holds the percent-of-expected band break points used to classify
// benchmark comparisons. Product policy, deliberately not hard-coded.
type TierConfig struct {
	ExcellentPct        float64 `envconfig:"GALLINAPP_TIER_EXCELLENT_PCT" default:"110"`
	GoodPct             float64 `envconfig:"GALLINAPP_TIER_GOOD_PCT" default:"100"`
	AcceptablePct       float64 `envconfig:"GALLINAPP_TIER_ACCEPTABLE_PCT" default:"85"`
	BelowPct            float64 `envconfig:"GALLINAPP_TIER_BELOW_PCT" default:"70"`
	DefaultMortalityPct float64 `envconfig:"GALLINAPP_TIER_DEFAULT_MORTALITY_PCT" default:"5"`
}

// WeighingThresholds groups the three staleness cut-offs for one bird kind.
type WeighingThresholds struct {
	AdvisoryDays    int
	EmergencyDays   int
	NeverWeighedAge int
}

// WelfareConfig carries the staleness thresholds and layer phase ages used by
// the welfare evaluator. All values are day counts or percentages.
type WelfareConfig struct {
	BroilerWeighAdvisoryDays  int `envconfig:"GALLINAPP_WELFARE_BROILER_WEIGH_ADVISORY_DAYS" default:"7"`
	BroilerWeighEmergencyDays int `envconfig:"GALLINAPP_WELFARE_BROILER_WEIGH_EMERGENCY_DAYS" default:"14"`
	BroilerNeverWeighedAge    int `envconfig:"GALLINAPP_WELFARE_BROILER_NEVER_WEIGHED_AGE" default:"14"`

	PulletWeighAdvisoryDays  int `envconfig:"GALLINAPP_WELFARE_PULLET_WEIGH_ADVISORY_DAYS" default:"14"`
	PulletWeighEmergencyDays int `envconfig:"GALLINAPP_WELFARE_PULLET_WEIGH_EMERGENCY_DAYS" default:"21"`
	PulletNeverWeighedAge    int `envconfig:"GALLINAPP_WELFARE_PULLET_NEVER_WEIGHED_AGE" default:"21"`

	LayerWeighAdvisoryDays  int `envconfig:"GALLINAPP_WELFARE_LAYER_WEIGH_ADVISORY_DAYS" default:"30"`
	LayerWeighEmergencyDays int `envconfig:"GALLINAPP_WELFARE_LAYER_WEIGH_EMERGENCY_DAYS" default:"45"`
	LayerNeverWeighedAge    int `envconfig:"GALLINAPP_WELFARE_LAYER_NEVER_WEIGHED_AGE" default:"45"`

	MinAlertAgeDays int `envconfig:"GALLINAPP_WELFARE_MIN_ALERT_AGE_DAYS" default:"133"`
	LayOnsetAgeDays int `envconfig:"GALLINAPP_WELFARE_LAY_ONSET_AGE_DAYS" default:"140"`
	FullLayAgeDays  int `envconfig:"GALLINAPP_WELFARE_FULL_LAY_AGE_DAYS" default:"161"`
	OnsetNoticeDays int `envconfig:"GALLINAPP_WELFARE_ONSET_NOTICE_DAYS" default:"7"`
	OnsetGraceDays  int `envconfig:"GALLINAPP_WELFARE_ONSET_GRACE_DAYS" default:"7"`

	CollectionAdvisoryDays  int `envconfig:"GALLINAPP_WELFARE_COLLECTION_ADVISORY_DAYS" default:"2"`
	CollectionEmergencyDays int `envconfig:"GALLINAPP_WELFARE_COLLECTION_EMERGENCY_DAYS" default:"4"`

	MortalityAdvisoryPct  float64 `envconfig:"GALLINAPP_WELFARE_MORTALITY_ADVISORY_PCT" default:"5"`
	MortalityEmergencyPct float64 `envconfig:"GALLINAPP_WELFARE_MORTALITY_EMERGENCY_PCT" default:"10"`
}

// WeighingFor returns the staleness thresholds for the given bird kind.
func (w WelfareConfig) WeighingFor(kind enums.BirdKind) WeighingThresholds {
	switch kind {
	case enums.BirdKindBroiler:
		return WeighingThresholds{
			AdvisoryDays:    w.BroilerWeighAdvisoryDays,
			EmergencyDays:   w.BroilerWeighEmergencyDays,
			NeverWeighedAge: w.BroilerNeverWeighedAge,
		}
	case enums.BirdKindPullet:
		return WeighingThresholds{
			AdvisoryDays:    w.PulletWeighAdvisoryDays,
			EmergencyDays:   w.PulletWeighEmergencyDays,
			NeverWeighedAge: w.PulletNeverWeighedAge,
		}
	default:
		return WeighingThresholds{
			AdvisoryDays:    w.LayerWeighAdvisoryDays,
			EmergencyDays:   w.LayerWeighEmergencyDays,
			NeverWeighedAge: w.LayerNeverWeighedAge,
		}
	}
}

// PipelineConfig carries the dedup, consolidation, rate-limit and retention
// policy for the notification delivery pipeline.
type PipelineConfig struct {
	DedupWindow            time.Duration `envconfig:"GALLINAPP_PIPELINE_DEDUP_WINDOW" default:"1h"`
	ConsolidationWindow    time.Duration `envconfig:"GALLINAPP_PIPELINE_CONSOLIDATION_WINDOW" default:"24h"`
	ConsolidationThreshold int           `envconfig:"GALLINAPP_PIPELINE_CONSOLIDATION_THRESHOLD" default:"3"`

	CriticalWindow time.Duration `envconfig:"GALLINAPP_PIPELINE_CRITICAL_WINDOW" default:"15m"`
	HighWindow     time.Duration `envconfig:"GALLINAPP_PIPELINE_HIGH_WINDOW" default:"30m"`
	MediumWindow   time.Duration `envconfig:"GALLINAPP_PIPELINE_MEDIUM_WINDOW" default:"60m"`
	LowWindow      time.Duration `envconfig:"GALLINAPP_PIPELINE_LOW_WINDOW" default:"120m"`

	CriticalQuota int `envconfig:"GALLINAPP_PIPELINE_CRITICAL_QUOTA" default:"3"`
	HighQuota     int `envconfig:"GALLINAPP_PIPELINE_HIGH_QUOTA" default:"2"`
	MediumQuota   int `envconfig:"GALLINAPP_PIPELINE_MEDIUM_QUOTA" default:"1"`
	LowQuota      int `envconfig:"GALLINAPP_PIPELINE_LOW_QUOTA" default:"1"`

	RetentionDays    int `envconfig:"GALLINAPP_PIPELINE_RETENTION_DAYS" default:"30"`
	CleanupBatchSize int `envconfig:"GALLINAPP_PIPELINE_CLEANUP_BATCH_SIZE" default:"500"`
}

// RateWindow returns the rolling window applied to the given severity.
func (p PipelineConfig) RateWindow(severity enums.AlertSeverity) time.Duration {
	switch severity {
	case enums.AlertSeverityCritical:
		return p.CriticalWindow
	case enums.AlertSeverityHigh:
		return p.HighWindow
	case enums.AlertSeverityMedium:
		return p.MediumWindow
	default:
		return p.LowWindow
	}
}

// RateQuota returns how many notifications of one (user, category) pair may
// be created inside the severity's rolling window.
func (p PipelineConfig) RateQuota(severity enums.AlertSeverity) int {
	switch severity {
	case enums.AlertSeverityCritical:
		return p.CriticalQuota
	case enums.AlertSeverityHigh:
		return p.HighQuota
	case enums.AlertSeverityMedium:
		return p.MediumQuota
	default:
		return p.LowQuota
	}
}

type PushConfig struct {
	Endpoint    string        `envconfig:"GALLINAPP_PUSH_ENDPOINT" default:"https://exp.host/--/api/v2/push/send"`
	AccessToken string        `envconfig:"GALLINAPP_PUSH_ACCESS_TOKEN"`
	Timeout     time.Duration `envconfig:"GALLINAPP_PUSH_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GALLINAPP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GALLINAPP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GALLINAPP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	MeasurementTopic        string `envconfig:"GALLINAPP_PUBSUB_MEASUREMENT_TOPIC" default:"ga-measurement-events"`
	MeasurementSubscription string `envconfig:"GALLINAPP_PUBSUB_MEASUREMENT_SUBSCRIPTION"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"GALLINAPP_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlags struct {
	AutoMigrate bool `envconfig:"GALLINAPP_FEATURE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
