package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env              string        `mapstructure:"ENV"`
	Port             string        `mapstructure:"PORT"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	AdminKey         string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed      string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	SolverURL        string        `mapstructure:"SOLVER_URL"`
	SolverTimeLimit  time.Duration `mapstructure:"SOLVER_TIME_LIMIT"`
	EmergencyReserve float64       `mapstructure:"EMERGENCY_RESERVE"`
	RoutingURL       string        `mapstructure:"ROUTING_URL"`
	RoutingParent    string        `mapstructure:"ROUTING_PARENT"`
	RoutingToken     string        `mapstructure:"ROUTING_TOKEN"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SOLVER_TIME_LIMIT", "120s")
	v.SetDefault("EMERGENCY_RESERVE", 0.2)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
