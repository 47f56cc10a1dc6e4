/*
Copyright 2022 The Mantis Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package util

import (
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/spf13/viper"
)

// GetSaramaConfigFromYAMLString parses a yaml string into a sarama.Config.
// Keys absent from the yaml keep the sarama defaults.
func GetSaramaConfigFromYAMLString(yaml string) (*sarama.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		return nil, fmt.Errorf("failed to read the kafka config yaml, %w", err)
	}
	cfg := sarama.NewConfig()
	// the sync producer needs successes returned to report a write as done
	cfg.Producer.Return.Successes = true
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode the kafka config, %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config, %w", err)
	}
	return cfg, nil
}
