package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed subjects.yaml
var subjectsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Mongo       MongoConfig
	Embedding   EmbeddingConfig
	Descriptors DescriptorConfig
	Match       MatchConfig
	Attendance  AttendanceConfig
	Log         LogConfig
	Web         WebConfig
	Subjects    SubjectCatalog
}

// Storage backends selectable with DATABASE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type DatabaseConfig struct {
	Backend      string // postgres (default) or mongo
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MongoConfig struct {
	URI      string // defaults to mongodb://localhost:27017
	Database string // defaults to student_attendance_system
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // expected descriptor length, 0 infers it from the first enrollment
}

type DescriptorConfig struct {
	Path string // flat file holding the enrolled descriptors, empty keeps them in memory only
}

// Match policies selectable with MATCH_POLICY.
const (
	PolicyFirst = "first"
	PolicyBest  = "best"
)

// Searchers selectable with MATCH_INDEX.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"
)

type MatchConfig struct {
	Tolerance float64 // maximum Euclidean distance (default 0.4)
	Policy    string  // first (default) or best
	Index     string  // linear (default) or hnsw
}

type AttendanceConfig struct {
	TimeZone    string // IANA zone used for attendance dates, empty = local
	FaceCropDir string // directory for enrollment face crops, empty disables them
}

type LogConfig struct {
	Level  string // debug, info, warn, error (default info)
	Format string // json (default) or console
}

type WebConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
}

// SubjectCatalog lists the subjects offered in each period.
type SubjectCatalog struct {
	Periods map[int][]string `yaml:"periods"`
}

// SubjectsFor returns the subjects of a period, nil for an unknown period.
func (c SubjectCatalog) SubjectsFor(period int) []string {
	return c.Periods[period]
}

// HasSubject reports whether subject is offered in period (case-insensitive).
func (c SubjectCatalog) HasSubject(period int, subject string) bool {
	for _, s := range c.Periods[period] {
		if strings.EqualFold(s, strings.TrimSpace(subject)) {
			return true
		}
	}
	return false
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString returns the lowercased value of key, or defaultVal when unset.
func envString(key, defaultVal string) string {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if s == "" {
		return defaultVal
	}
	return s
}

// envList splits a comma-separated environment variable.
func envList(key string) []string {
	var out []string
	for v := range strings.SplitSeq(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadSubjects parses the embedded subject catalog.
func LoadSubjects() SubjectCatalog {
	var catalog SubjectCatalog
	if err := yaml.Unmarshal(subjectsYAML, &catalog); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded subjects.yaml: " + err.Error())
	}
	return catalog
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Backend:      envString("DATABASE_BACKEND", BackendPostgres),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: os.Getenv("MONGO_DATABASE"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 0),
		},
		Descriptors: DescriptorConfig{
			Path: os.Getenv("DESCRIPTOR_PATH"),
		},
		Match: MatchConfig{
			Tolerance: envFloat("MATCH_TOLERANCE", 0.4),
			Policy:    envString("MATCH_POLICY", PolicyFirst),
			Index:     envString("MATCH_INDEX", IndexLinear),
		},
		Attendance: AttendanceConfig{
			TimeZone:    os.Getenv("ATTENDANCE_TIMEZONE"),
			FaceCropDir: os.Getenv("FACE_CROP_DIR"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           os.Getenv("WEB_HOST"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Subjects: LoadSubjects(),
	}
}
