package main

import (
	stdLog "log"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/app"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	cfg := config.NewConfig(
		config.WithLogLevel(zapcore.DebugLevel),
		config.WithWriteTimeout(time.Minute),
	)

	if err := app.Run(cfg); err != nil {
		stdLog.Fatal("app run ", err)
	}
}
