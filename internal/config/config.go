package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer HTTPServer `yaml:"http_server" env-required:"true"`
	Mongo      Mongo      `yaml:"mongo" env-required:"true"`
	MinIO      MinIO      `yaml:"minio" env-required:"true"`
	Redis      Redis      `yaml:"redis"`
	Media      Media      `yaml:"media"`
	JWTSecret  string     `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
}

type HTTPServer struct {
	Address string `yaml:"address" env-default:"localhost:8080"`
}

type Mongo struct {
	URI      string        `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string        `yaml:"database" env-default:"visit_media"`
	Timeout  time.Duration `yaml:"timeout" env-default:"5s"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-required:"true"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY" env-required:"true"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_KEY" env-required:"true"`
	BucketName      string `yaml:"bucket_name" env-default:"visit-media"`
	UseSSL          bool   `yaml:"use_ssl" env-default:"false"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

// Media holds the upload policy: which content types are accepted per kind,
// how long presigned URLs stay valid, and the default retention policy
// applied when a request does not name one.
type Media struct {
	AllowedAudioTypes []string `yaml:"allowed_audio_types" env-default:"audio/wav,audio/mpeg,audio/mp4,audio/webm,audio/ogg"`
	AllowedPhotoTypes []string `yaml:"allowed_photo_types" env-default:"image/jpeg,image/png,image/heic,image/webp"`
	UploadURLTTL      int      `yaml:"upload_url_ttl" env-default:"300"`
	DownloadURLTTL    int      `yaml:"download_url_ttl" env-default:"3600"`
	MaxFileSize       int64    `yaml:"max_file_size" env-default:"104857600"`
	DefaultRetention  string   `yaml:"default_retention" env-default:"7_years"`
	UploadRateLimit   int64    `yaml:"upload_rate_limit" env-default:"30"`
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)

	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	return &cfg
}
