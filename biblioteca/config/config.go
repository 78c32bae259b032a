package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/service"
	"github.com/javeriana-dev/biblioteca-service/pkg/kafka"
	"github.com/javeriana-dev/biblioteca-service/pkg/logger"
	"github.com/javeriana-dev/biblioteca-service/pkg/postgres"

	"github.com/kelseyhightower/envconfig"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration
}

type Sweep struct {
	OverdueInterval time.Duration `envconfig:"OVERDUE_SWEEP_INTERVAL" default:"10m"`
	ExpiryInterval  time.Duration `envconfig:"EXPIRY_SWEEP_INTERVAL" default:"10m"`
}

type Config struct {
	Server       HTTPServer `yaml:"server"`
	Database     postgres.Config
	Kafka        kafka.Config
	KafkaEnabled bool `envconfig:"KAFKA_ENABLED" default:"false"`
	Policy       service.Policy
	Sweep        Sweep
	Log          logger.Log `yaml:"log"`
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
