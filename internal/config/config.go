package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Port          int           `yaml:"port"`
	LogLevel      string        `yaml:"log_level"`
	LogJSON       bool          `yaml:"log_json"`
	SecureCookies bool          `yaml:"secure_cookies"`
	JwtTTL        time.Duration `yaml:"jwt_ttl"`

	// Authentication mode: db, ldap, cma, openid or db-openid.
	AuthMethod string `yaml:"auth_method"`

	BanListPath            string        `yaml:"ban_list_path"`
	BanListRefreshInterval time.Duration `yaml:"ban_list_refresh_interval"`

	AkismetURL     string        `yaml:"akismet_url"` // override for tests/proxies; empty = public endpoint
	AkismetTimeout time.Duration `yaml:"akismet_timeout"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"` // seconds
}

type Private struct {
	Pg         Pg     `yaml:"pg"`
	Email      Email  `yaml:"email"`
	JwtKey     string `yaml:"jwt_key"`
	AkismetKey string `yaml:"akismet_key"`
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

func (c *Config) JwtTTL() time.Duration {
	return c.Public.JwtTTL
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	return &Config{public, private}
}
