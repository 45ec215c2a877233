package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "PROFILESYNC"

// Backend names accepted by BackendsConfig.
const (
	BackendLocal     = "local"
	BackendFirebase  = "firebase"
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendS3        = "s3"
)

type Config struct {
	App      AppConfig
	Backends BackendsConfig
	Firebase FirebaseConfig
	Mongo    MongoConfig
	S3       S3Config
	Local    LocalConfig
	Media    MediaConfig
	Bridge   BridgeConfig
}

type AppConfig struct {
	Env       string `envconfig:"ENV" default:"dev"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	DataDir   string `envconfig:"DATA_DIR" default:".profilesync"`
}

// BackendsConfig selects the implementation behind each external collaborator.
type BackendsConfig struct {
	Identity  string `envconfig:"IDENTITY" default:"local"`
	Documents string `envconfig:"DOCUMENTS" default:"local"`
	Objects   string `envconfig:"OBJECTS" default:"local"`
}

type FirebaseConfig struct {
	ProjectID       string `envconfig:"PROJECT_ID"`
	APIKey          string `envconfig:"API_KEY"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE"`
	CredentialsJSON string `envconfig:"CREDENTIALS_JSON"`
	StorageBucket   string `envconfig:"STORAGE_BUCKET"`
	Collection      string `envconfig:"COLLECTION" default:"users"`
	TokenURL        string `envconfig:"TOKEN_URL"`
}

type MongoConfig struct {
	URI        string `envconfig:"URI"`
	Database   string `envconfig:"DATABASE" default:"profilesync"`
	Collection string `envconfig:"COLLECTION" default:"users"`
}

type S3Config struct {
	Endpoint  string `envconfig:"ENDPOINT"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`
	Bucket    string `envconfig:"BUCKET"`
	// Public read prefix of the bucket; photo references are stored as PublicBaseURL/key.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`
}

type LocalConfig struct {
	UploadDir     string        `envconfig:"UPLOAD_DIR" default:".profilesync/uploads"`
	PublicBaseURL string        `envconfig:"PUBLIC_BASE_URL" default:"http://127.0.0.1:8080/uploads"`
	TokenSecret   string        `envconfig:"TOKEN_SECRET" default:"local-dev-secret"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

type MediaConfig struct {
	CameraCommand string        `envconfig:"CAMERA_COMMAND"`
	Screening     bool          `envconfig:"SCREENING" default:"false"`
	StageTimeout  time.Duration `envconfig:"STAGE_TIMEOUT" default:"30s"`
}

type BridgeConfig struct {
	Addr           string        `envconfig:"ADDR" default:"127.0.0.1:8080"`
	Secret         string        `envconfig:"SECRET"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8081"`
	MaxUploadMB    int64         `envconfig:"MAX_UPLOAD_MB" default:"10"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

// Load reads an optional dotenv file and then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend names and the settings each selected backend needs.
func (c *Config) Validate() error {
	var problems []string

	switch c.Backends.Identity {
	case BackendLocal:
	case BackendFirebase:
		if c.Firebase.APIKey == "" {
			problems = append(problems, "firebase identity requires PROFILESYNC_FIREBASE_API_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown identity backend %q", c.Backends.Identity))
	}

	switch c.Backends.Documents {
	case BackendLocal:
	case BackendFirestore:
		if c.Firebase.ProjectID == "" {
			problems = append(problems, "firestore documents require PROFILESYNC_FIREBASE_PROJECT_ID")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			problems = append(problems, "mongo documents require PROFILESYNC_MONGO_URI")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown documents backend %q", c.Backends.Documents))
	}

	switch c.Backends.Objects {
	case BackendLocal:
	case BackendFirebase:
		if c.Firebase.StorageBucket == "" {
			problems = append(problems, "firebase objects require PROFILESYNC_FIREBASE_STORAGE_BUCKET")
		}
	case BackendS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			problems = append(problems, "s3 objects require PROFILESYNC_S3_ENDPOINT and PROFILESYNC_S3_BUCKET")
		}
		if c.S3.PublicBaseURL == "" {
			problems = append(problems, "s3 objects require PROFILESYNC_S3_PUBLIC_BASE_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown objects backend %q", c.Backends.Objects))
	}

	if c.Media.StageTimeout <= 0 {
		problems = append(problems, "PROFILESYNC_MEDIA_STAGE_TIMEOUT must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesFirebaseApp reports whether any backend needs an initialized Firebase app.
func (c *Config) UsesFirebaseApp() bool {
	return c.Backends.Documents == BackendFirestore || c.Backends.Objects == BackendFirebase
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}
