package cfg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	// infisical
	infisical "github.com/infisical/go-sdk"
	"github.com/infisical/go-sdk/packages/models"

	// others
	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"

	"github.com/igorrodygin/museum-quiz-bot/consts"
)

// constants for config
const (
	AppName        = "museum-quiz-bot"
	configFilename = "config.json"
)

// environment variables which override config file values
const (
	EnvBotToken = "BOT_TOKEN"
	EnvDataPath = "DATA_PATH"
	EnvDBPath   = "DB_PATH"
)

// Config struct for config file
type Config struct {
	AdminUsernames  []string `json:"admin_usernames,omitempty"`
	DataPath        string   `json:"data_path,omitempty"`
	DBPath          string   `json:"db_path,omitempty"`
	DailyLimit      int      `json:"daily_limit,omitempty"`
	MonitorInterval int      `json:"monitor_interval"`
	CLIPort         int      `json:"cli_port"`
	IsVerbose       bool     `json:"is_verbose"`

	// Bot API Token,
	APIToken string `json:"api_token,omitempty"`

	// or from Infisical
	Infisical *struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`

		ProjectID   string `json:"project_id"`
		Environment string `json:"environment"`
		SecretType  string `json:"secret_type"`

		APITokenKeyPath string `json:"api_token_key_path"`
	} `json:"infisical,omitempty"`
}

// get .config directory path
func GetConfigDir() (configDir string, err error) {
	// https://xdgbasedirectoryspecification.com
	configDir = os.Getenv("XDG_CONFIG_HOME")

	// If the value of the environment variable is unset, empty, or not an absolute path, use the default
	if configDir == "" || configDir[0:1] != "/" {
		var homeDir string
		if homeDir, err = os.UserHomeDir(); err == nil {
			configDir = filepath.Join(homeDir, ".config", AppName)
		}
	} else {
		configDir = filepath.Join(configDir, AppName)
	}

	return configDir, err
}

// GetConfig reads config from the config file, `.env`, and the environment.
//
// A missing config file is not an error: everything can come from the
// environment. The bot token is not validated here; callers decide
// whether they need one.
func GetConfig() (conf Config, err error) {
	// values from a local .env file, if any (existing variables win)
	_ = godotenv.Load()

	var configDir string
	if configDir, err = GetConfigDir(); err != nil {
		return Config{}, fmt.Errorf("failed to get config directory: %s", err)
	}

	configFilepath := filepath.Join(configDir, configFilename)

	var bytes []byte
	if bytes, err = os.ReadFile(configFilepath); err == nil {
		if bytes, err = standardizeJSON(bytes); err != nil {
			return Config{}, fmt.Errorf("failed to standardize config file: %s", err)
		}
		if err = json.Unmarshal(bytes, &conf); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %s", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read config file: %s", err)
	}

	// environment variables override file values
	if token := os.Getenv(EnvBotToken); token != "" {
		conf.APIToken = token
	}
	if dataPath := os.Getenv(EnvDataPath); dataPath != "" {
		conf.DataPath = dataPath
	}
	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		conf.DBPath = dbPath
	}

	if conf.APIToken == "" && conf.Infisical != nil {
		// read bot token from infisical
		client := infisical.NewInfisicalClient(context.Background(), infisical.Config{
			SiteUrl: "https://app.infisical.com",
		})

		_, err = client.Auth().UniversalAuthLogin(conf.Infisical.ClientID, conf.Infisical.ClientSecret)
		if err != nil {
			return Config{}, fmt.Errorf("failed to authenticate with Infisical: %s", err)
		}

		var secret models.Secret

		// telegram bot token
		keyPath := conf.Infisical.APITokenKeyPath
		secret, err = client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			ProjectID:   conf.Infisical.ProjectID,
			Type:        conf.Infisical.SecretType,
			Environment: conf.Infisical.Environment,
			SecretPath:  path.Dir(keyPath),
			SecretKey:   path.Base(keyPath),
		})
		if err != nil {
			return Config{}, fmt.Errorf("failed to retrieve `api_token` from Infisical: %s", err)
		}
		conf.APIToken = secret.SecretValue
	}

	// fallback values
	if conf.DataPath == "" {
		conf.DataPath = consts.DefaultDataPath
	}
	if conf.DBPath == "" {
		conf.DBPath = consts.DefaultDBPath
	}
	if conf.DailyLimit <= 0 {
		conf.DailyLimit = consts.DefaultDailyLimit
	}
	if conf.MonitorInterval <= 0 {
		conf.MonitorInterval = consts.DefaultMonitorIntervalSeconds
	}
	if conf.CLIPort <= 0 {
		conf.CLIPort = consts.DefaultCLIPortNumber
	}

	return conf, nil
}

// standardize given JSON (JWCC) bytes
func standardizeJSON(b []byte) ([]byte, error) {
	ast, err := hujson.Parse(b)
	if err != nil {
		return b, err
	}
	ast.Standardize()

	return ast.Pack(), nil
}
