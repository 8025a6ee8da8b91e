package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	mathRand "math/rand"
	"os"
	"regexp"
	"strings"
	"time"
	"unsafe"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/phuslu/log"
	"github.com/spf13/viper"
)

var IsTestMode bool = false

const (
	CRITICAL = "critical"
	ERROR    = "error"
	WARNING  = "warn"
	INFO     = "info"
	DEBUG    = "debug"
)

// Logger carries the internal detail of a failed request. It is logged, never returned to the client.
type Logger struct {
	LogLevel    string
	Message     string
	ServiceName string
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const (
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

const shareCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandString is used for trace identifiers only, it is not a secret.
func RandString(n int) string {
	var src = mathRand.NewSource(time.Now().UnixNano())
	b := make([]byte, n)
	// A src.Int63() generates 63 random bits, enough for letterIdxMax characters!
	for i, cache, remain := n-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return *(*string)(unsafe.Pointer(&b))
}

// GenerateShareCode returns an uppercase base-36 code drawn from crypto/rand.
func GenerateShareCode(n int) (string, error) {
	return randomCode(rand.Reader, n)
}

func randomCode(r io.Reader, n int) (string, error) {
	max := big.NewInt(int64(len(shareCodeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(r, max)
		if err != nil {
			return "", fmt.Errorf("unable to generate share code: %w", err)
		}
		b[i] = shareCodeAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// preventing application from crashing abruptly. use defer PanicRecover() on top of the codes that may cause panic
func PanicRecover() {
	if r := recover(); r != nil {
		log.Error().Msgf("Recovered from panic: %v", r)
	}
}

func InitializeViper(configName string, configType string) {
	viper.SetConfigName(configName)
	if IsTestMode {
		fmt.Println("Running in Test mode...")
		viper.AddConfigPath("../") // Adjust the path for test environment
	} else {
		// Normal mode configuration
		viper.AddConfigPath("/app") // Adjust the path for production environment
		viper.AddConfigPath(".")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigType(configType)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal().Err(err).Msg("Error reading config file")
		}
		log.Warn().Msg("No config file found, running on defaults and environment")
	}
}

// InitializeLogger configures the process logger: colored console on a terminal, file output otherwise.
func InitializeLogger(level string, filename string) {
	if log.IsTerminal(os.Stderr.Fd()) || filename == "" {
		log.DefaultLogger = log.Logger{
			Level:  log.ParseLevel(level),
			Caller: 1,
			Writer: &log.ConsoleWriter{
				ColorOutput:    true,
				EndWithMessage: true,
			},
		}
		return
	}
	log.DefaultLogger = log.Logger{
		Level:  log.ParseLevel(level),
		Caller: 0,
		Writer: &log.FileWriter{
			Filename:     filename,
			MaxSize:      100 * 1024 * 1024,
			MaxBackups:   7,
			LocalTime:    true,
			FileMode:     os.FileMode(0600),
			EnsureFolder: true,
		},
	}
}

// LogMessage writes one log line tagged with the service and a trace id, and returns the trace id.
func LogMessage(logLevel string, message string, service string, forcedTraceId ...string) string {
	traceId := RandString(12)
	//manually set log trace id
	if len(forcedTraceId) > 0 && forcedTraceId[0] != "" {
		traceId = forcedTraceId[0]
	}
	var entry *log.Entry
	switch logLevel {
	case CRITICAL, ERROR:
		entry = log.Error()
	case WARNING, "warning":
		entry = log.Warn()
	case DEBUG:
		entry = log.Debug()
	default:
		entry = log.Info()
	}
	entry.Str("Service", service).Str("Identifier", traceId).Str("Severity", logLevel).Msg(message)
	return traceId
}

// JsonErrorResponse writes {status, message}. When a Logger is given its message is logged and the
// trace id is returned to the client instead of the detail.
func JsonErrorResponse(c *fiber.Ctx, status int, message string, logger ...Logger) error {
	body := fiber.Map{"status": status, "message": message}
	if len(logger) > 0 {
		l := logger[0]
		body["trace_id"] = LogMessage(l.LogLevel, l.Message, l.ServiceName)
	}
	return c.Status(status).JSON(body)
}

func RegexValidation(fl validator.FieldLevel) bool {
	pattern := fl.Param()
	if pattern == "" {
		return true
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(fl.Field().String())
}

// ValidateStructText turns validator errors into one readable sentence, nil when err is nil.
func ValidateStructText(err error) *string {
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		msg := err.Error()
		return &msg
	}
	parts := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", fe.Field()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is not valid", fe.Field()))
		}
	}
	msg := strings.Join(parts, ", ")
	return &msg
}

// IsErrDuplicate reports a postgres unique violation and the violated constraint.
func IsErrDuplicate(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true, pgErr.ConstraintName
	}
	return false, ""
}

func IsForeignKeyErr(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return true, pgErr.ConstraintName
	}
	return false, ""
}

func Localize(localizer *i18n.Localizer, messageID string, templateData map[string]interface{}) string {
	return localizer.MustLocalize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: templateData,
	})
}
