package config

import (
	"github.com/spf13/viper"
)

// The service is expected to run in EKS with the DB connection variables
// set as environment variables on the pod. AWS config and the SQS queue
// URLs are handled the same way.

type Config struct {
	DBHost               string `mapstructure:"DB_HOST"`
	DBPort               string `mapstructure:"DB_PORT"`
	DBUser               string `mapstructure:"DB_USER"`
	DBPassword           string `mapstructure:"DB_PASSWORD"`
	DBName               string `mapstructure:"DB_NAME"`
	ServerPort           string `mapstructure:"SERVER_PORT"`
	AWSRegion            string `mapstructure:"AWS_REGION"`
	RecomputeSQSQueueURL string `mapstructure:"RECOMPUTE_SQS_QUEUE_URL"`
	NoticeSQSQueueURL    string `mapstructure:"NOTICE_SQS_QUEUE_URL"`
	AWSEndpoint          string `mapstructure:"AWS_ENDPOINT"`
	DirectoryAPIURL      string `mapstructure:"DIRECTORY_API_URL"`
	NoticeSender         string `mapstructure:"NOTICE_SENDER"`
	Timezone             string `mapstructure:"TIMEZONE"`
	IsLocalDev           bool   `mapstructure:"IS_LOCAL_DEV"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "attendance_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1") // Default region for AWS services
	viper.SetDefault("RECOMPUTE_SQS_QUEUE_URL", "http://localstack:4566/000000000000/recompute-queue")
	viper.SetDefault("NOTICE_SQS_QUEUE_URL", "http://localstack:4566/000000000000/notice-queue")
	viper.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	viper.SetDefault("DIRECTORY_API_URL", "http://localhost:8081/")
	viper.SetDefault("NOTICE_SENDER", "attendance@factory.com")
	viper.SetDefault("TIMEZONE", "Asia/Tokyo")
	viper.SetDefault("IS_LOCAL_DEV", false)

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}
