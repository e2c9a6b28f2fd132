// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors StructuredConfig with JSON tags and
// string-friendly durations. The alias table lives only here: aliases are
// persisted in the config file, never by the core.
type StructuredJSONConfig struct {
	Server struct {
		Host          string   `json:"host"`
		Port          int      `json:"port"`
		Binary        string   `json:"binary"`
		DialTimeout   Duration `json:"dial_timeout"`
		StartAttempts int      `json:"start_attempts"`
		StartBackoff  Duration `json:"start_backoff"`
	} `json:"server,omitempty"`

	Transfer struct {
		Workers   int    `json:"workers"`
		OutputDir string `json:"output_dir"`
	} `json:"transfer,omitempty"`

	Registry struct {
		ListRetryAttempts int      `json:"list_retry_attempts"`
		ListRetryDelay    Duration `json:"list_retry_delay"`
	} `json:"registry,omitempty"`

	Aliases map[string]string `json:"aliases,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Server: Server{
			Host:          jsonCfg.Server.Host,
			Port:          jsonCfg.Server.Port,
			Binary:        jsonCfg.Server.Binary,
			DialTimeout:   time.Duration(jsonCfg.Server.DialTimeout),
			StartAttempts: jsonCfg.Server.StartAttempts,
			StartBackoff:  time.Duration(jsonCfg.Server.StartBackoff),
		},
		Transfer: Transfer{
			Workers:   jsonCfg.Transfer.Workers,
			OutputDir: jsonCfg.Transfer.OutputDir,
		},
		Registry: Registry{
			ListRetryAttempts: jsonCfg.Registry.ListRetryAttempts,
			ListRetryDelay:    time.Duration(jsonCfg.Registry.ListRetryDelay),
		},
		Aliases: jsonCfg.Aliases,
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
