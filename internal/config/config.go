package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "FINBOT_"

type Application struct {
	Port         int          `koanf:"port"`
	Log          Log          `koanf:"log"`
	Database     Database     `koanf:"db"`
	Budget       Budget       `koanf:"budget"`
	Analytics    Analytics    `koanf:"analytics"`
	Snapshot     Snapshot     `koanf:"snapshot"`
	Transactions Transactions `koanf:"transactions"`
}

type Log struct {
	// Format is either "text" or "json".
	Format string `koanf:"format"`
}

type Database struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Pass     string `koanf:"pass"`
	Name     string `koanf:"name"`
	Schema   string `koanf:"schema"`
	MaxConns int32  `koanf:"maxconns"`
	MinConns int32  `koanf:"minconns"`
}

type Budget struct {
	YearFloor      int `koanf:"yearfloor"`
	AlertThreshold int `koanf:"alertthreshold"`
}

type Analytics struct {
	TrendMonths    int   `koanf:"trendmonths"`
	CategoryMonths int   `koanf:"categorymonths"`
	Cache          Cache `koanf:"cache"`
}

type Cache struct {
	Enabled     bool          `koanf:"enabled"`
	NumCounters int64         `koanf:"numcounters"`
	MaxCost     int64         `koanf:"maxcost"`
	TTL         time.Duration `koanf:"ttl"`
}

type Snapshot struct {
	Recent        int `koanf:"recent"`
	TopCategories int `koanf:"topcategories"`
}

type Transactions struct {
	PageSize    int `koanf:"pagesize"`
	MaxPageSize int `koanf:"maxpagesize"`
}

func Defaults() Application {
	return Application{
		Port: 8181,
		Log:  Log{Format: "text"},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "finbot",
			Pass:     "",
			Name:     "finbot",
			Schema:   "finbot",
			MaxConns: 25,
			MinConns: 5,
		},
		Budget: Budget{
			YearFloor:      2020,
			AlertThreshold: 80,
		},
		Analytics: Analytics{
			TrendMonths:    6,
			CategoryMonths: 3,
			Cache: Cache{
				Enabled:     true,
				NumCounters: 10000,
				MaxCost:     1000,
				TTL:         10 * time.Minute,
			},
		},
		Snapshot: Snapshot{
			Recent:        5,
			TopCategories: 5,
		},
		Transactions: Transactions{
			PageSize:    10,
			MaxPageSize: 100,
		},
	}
}

// Load reads defaults, then the optional YAML file at path, then FINBOT_* environment variables.
// FINBOT_DB_HOST overrides db.host, FINBOT_ANALYTICS_CACHE_ENABLED overrides analytics.cache.enabled.
func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
