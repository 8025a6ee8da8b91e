package config

import (
	"fmt"
	"time"

	"github.com/fiorix/go-smpp/smpp"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"

	"raffle-service/utils"
)

var ServiceName string = "raffle-service"

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	Database int
}

type SMPPConfig struct {
	Address  string
	User     string
	Password string
	Source   string
}

type ResendConfig struct {
	ApiKey   string
	From     string
	Endpoint string
}

type NotificationConfig struct {
	Driver string
	Delay  time.Duration
	Locale string
}

type ReceiptConfig struct {
	Dir       string
	PublicURL string
	MaxSize   int64
}

type AppConfig struct {
	ServiceName  string
	Port         string
	BaseURL      string
	Location     *time.Location
	StoreDriver  string
	Redis        RedisConfig
	Notification NotificationConfig
	Resend       ResendConfig
	SMPP         SMPPConfig
	Cutoff       time.Duration
	MinDuration  time.Duration
	Receipts     ReceiptConfig
	LogLevel     string
	LogFile      string
	AllowOrigins string
}

func setDefaults() {
	viper.SetDefault("service_name", ServiceName)
	viper.SetDefault("port", "9000")
	viper.SetDefault("timezone", "America/Argentina/Buenos_Aires")
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("notification.driver", "log")
	viper.SetDefault("notification.delay_ms", 600)
	viper.SetDefault("notification.locale", "es")
	viper.SetDefault("participation.cutoff_minutes", 30)
	viper.SetDefault("participation.min_duration_minutes", 120)
	viper.SetDefault("receipts.dir", "/app/uploads")
	viper.SetDefault("receipts.max_size_mb", 10)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("cors.allow_origins", "*")
}

// Load reads the typed configuration from viper. Nothing else in the service reads viper.
func Load() (*AppConfig, error) {
	setDefaults()
	location, err := time.LoadLocation(viper.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", viper.GetString("timezone"), err)
	}
	cfg := &AppConfig{
		ServiceName: viper.GetString("service_name"),
		Port:        viper.GetString("port"),
		BaseURL:     viper.GetString("base_url"),
		Location:    location,
		StoreDriver: viper.GetString("store.driver"),
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Host:     viper.GetString("redis.host"),
			Port:     viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			Database: viper.GetInt("redis.database"),
		},
		Notification: NotificationConfig{
			Driver: viper.GetString("notification.driver"),
			Delay:  time.Duration(viper.GetInt("notification.delay_ms")) * time.Millisecond,
			Locale: viper.GetString("notification.locale"),
		},
		Resend: ResendConfig{
			ApiKey:   viper.GetString("resend.api_key"),
			From:     viper.GetString("resend.from"),
			Endpoint: viper.GetString("resend.endpoint"),
		},
		SMPP: SMPPConfig{
			Address:  viper.GetString("smpp.address"),
			User:     viper.GetString("smpp.user"),
			Password: viper.GetString("smpp.password"),
			Source:   viper.GetString("smpp.source"),
		},
		Cutoff:      time.Duration(viper.GetInt("participation.cutoff_minutes")) * time.Minute,
		MinDuration: time.Duration(viper.GetInt("participation.min_duration_minutes")) * time.Minute,
		Receipts: ReceiptConfig{
			Dir:       viper.GetString("receipts.dir"),
			PublicURL: viper.GetString("receipts.public_url"),
			MaxSize:   viper.GetInt64("receipts.max_size_mb") * 1024 * 1024,
		},
		LogLevel:     viper.GetString("log.level"),
		LogFile:      viper.GetString("log.file"),
		AllowOrigins: viper.GetString("cors.allow_origins"),
	}
	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	switch cfg.Notification.Driver {
	case "email":
		if cfg.Resend.ApiKey == "" || cfg.Resend.From == "" {
			return nil, fmt.Errorf("notification driver email needs resend.api_key and resend.from")
		}
	case "sms":
		if cfg.SMPP.Address == "" {
			return nil, fmt.Errorf("notification driver sms needs smpp.address")
		}
	case "log":
	default:
		return nil, fmt.Errorf("unknown notification driver %q", cfg.Notification.Driver)
	}
	if cfg.Receipts.PublicURL == "" {
		cfg.Receipts.PublicURL = cfg.BaseURL + "/api/v1/files"
	}
	return cfg, nil
}

func NewRedis(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})
}

// InitializeSMPP binds a transmitter and waits for the first connection status.
func InitializeSMPP(cfg SMPPConfig) (*smpp.Transmitter, error) {
	tx := &smpp.Transmitter{
		Addr:   cfg.Address,
		User:   cfg.User,
		Passwd: cfg.Password,
	}
	conn := tx.Bind()
	// check initial connection status
	if status := <-conn; status.Error() != nil {
		utils.LogMessage(utils.CRITICAL, fmt.Sprintf("Unable to connect to %s, aborting: %v", cfg.Address, status.Error()), ServiceName)
		return nil, status.Error()
	}
	go func() {
		for status := range conn {
			if status.Error() != nil {
				utils.LogMessage(utils.WARNING, fmt.Sprintf("SMPP connection to %s: %s, %v", cfg.Address, status.Status(), status.Error()), ServiceName)
			}
		}
	}()
	utils.LogMessage(utils.INFO, "SMPP connection established, addr:"+cfg.Address, ServiceName)
	return tx, nil
}
