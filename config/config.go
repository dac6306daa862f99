package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Identity service
	IdentityAPIURL      string
	IdentityCSRFURL     string
	IdentityLoginURL    string
	IdentityLogoutURL   string
	IdentityStudentURL  string
	IdentityCSRFEnabled bool
	IdentityTimeout     time.Duration
	IdentityMock        bool
	IdentityCacheTTL    time.Duration

	// Reports
	ReportTimezone string
	RecapCron      string

	// HTTP
	Port           string
	AppEnv         string
	CookieSecure   bool
	CORSOrigins    string
	LoginRateLimit int

	// Logging
	LogLevel string
	LogFile  string

	// Feature Toggles
	SkipMigrate bool
}

func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

// CSRFURL is the Sanctum CSRF cookie endpoint, or "" when the pre-flight is disabled.
func (c *Config) CSRFURL() string {
	if !c.IdentityCSRFEnabled {
		return ""
	}
	if c.IdentityCSRFURL != "" {
		return c.IdentityCSRFURL
	}
	return deriveURL(c.IdentityAPIURL, "/sanctum/csrf-cookie")
}

func (c *Config) LoginURL() string {
	if c.IdentityLoginURL != "" {
		return c.IdentityLoginURL
	}
	return deriveURL(c.IdentityAPIURL, "/assembly-login")
}

// LogoutURL prefers an explicit override, then the login host, then the API host.
func (c *Config) LogoutURL() string {
	if c.IdentityLogoutURL != "" {
		return c.IdentityLogoutURL
	}
	if c.IdentityLoginURL != "" {
		return deriveURL(c.IdentityLoginURL, "/assembly-logout")
	}
	return deriveURL(c.IdentityAPIURL, "/assembly-logout")
}

func (c *Config) StudentURL() string {
	if c.IdentityStudentURL != "" {
		return c.IdentityStudentURL
	}
	return c.IdentityAPIURL
}

// deriveURL resolves path against base; an empty or relative base yields "".
func deriveURL(base, path string) string {
	if strings.TrimSpace(base) == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return u.ResolveReference(ref).String()
}

var AppConfig *Config

func LoadConfig() {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var (
		ssmClient *ssm.SSM
		paramMap  map[string]string
	)

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := getEnv("SSM_BASE_PATH", "/laporan-ramadhan")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	basePath = strings.TrimRight(basePath, "/")
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-southeast-3"))})
		if err != nil {
			log.Fatal("Failed to create AWS session:", err)
		}
		ssmClient = ssm.New(sess)
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssmClient, prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	getVal := func(key, def string) string {
		if useSSM {
			uk := strings.ToUpper(key)
			if v, ok := paramMap[uk]; ok && v != "" {
				return v
			}
		}
		return getEnv(strings.ToUpper(key), def)
	}

	AppConfig = buildConfig(getVal)
	validateConfig(AppConfig, useSSM)
}

// buildConfig maps raw key lookups onto a Config. Invalid durations and numbers are fatal.
func buildConfig(getVal func(key, def string) string) *Config {
	identityTimeout, err := time.ParseDuration(getVal("IDENTITY_TIMEOUT", "10s"))
	if err != nil || identityTimeout <= 0 {
		log.Fatal("Invalid IDENTITY_TIMEOUT format:", err)
	}

	cacheTTL, err := time.ParseDuration(getVal("IDENTITY_CACHE_TTL", "10m"))
	if err != nil {
		log.Fatal("Invalid IDENTITY_CACHE_TTL format:", err)
	}

	loginRate, err := strconv.Atoi(getVal("LOGIN_RATE_LIMIT", "10"))
	if err != nil {
		log.Fatal("Invalid LOGIN_RATE_LIMIT format:", err)
	}

	return &Config{
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", "3306"),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "laporan_ramadhan"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		IdentityAPIURL:      getVal("IDENTITY_API_URL", ""),
		IdentityCSRFURL:     getVal("IDENTITY_CSRF_URL", ""),
		IdentityLoginURL:    getVal("IDENTITY_LOGIN_URL", ""),
		IdentityLogoutURL:   getVal("IDENTITY_LOGOUT_URL", ""),
		IdentityStudentURL:  getVal("IDENTITY_STUDENT_URL", ""),
		IdentityCSRFEnabled: strings.ToLower(getVal("IDENTITY_CSRF_ENABLED", "true")) == "true",
		IdentityTimeout:     identityTimeout,
		IdentityMock:        strings.ToLower(getVal("IDENTITY_MOCK", "false")) == "true",
		IdentityCacheTTL:    cacheTTL,

		ReportTimezone: getVal("REPORT_TIMEZONE", "Asia/Jakarta"),
		RecapCron:      getVal("RECAP_CRON", "5 0 * * *"),

		Port:           getVal("PORT", "3000"),
		AppEnv:         getVal("APP_ENV", "development"),
		CookieSecure:   strings.ToLower(getVal("COOKIE_SECURE", "true")) == "true",
		CORSOrigins:    getVal("CORS_ORIGINS", "http://localhost:5173"),
		LoginRateLimit: loginRate,

		LogLevel: getVal("LOG_LEVEL", "info"),
		LogFile:  getVal("LOG_FILE", "logs/app.log"),

		SkipMigrate: strings.ToLower(getVal("SKIP_MIGRATE", "false")) == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// fetchSSMParameters reads all parameters under prefix and returns map with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	next := aws.String("")
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
		}
		if *next != "" {
			in.NextToken = next
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			name := *p.Name
			key := name
			if idx := strings.LastIndex(name, "/"); idx >= 0 {
				key = name[idx+1:]
			}
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config, usedSSM bool) {
	// Only enforce stricter rules in production
	if strings.ToLower(c.AppEnv) != "production" {
		return
	}
	required := map[string]string{
		"DB_PASSWORD":      c.DBPassword,
		"IDENTITY_API_URL": c.IdentityAPIURL,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			log.Fatalf("Missing required setting %s in production (SSM=%v)", k, usedSSM)
		}
	}
	if c.IdentityMock {
		log.Fatal("IDENTITY_MOCK must not be enabled in production")
	}
}
