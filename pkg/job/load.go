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

package job

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envKeys are the flat keys overridable through MANTIS_* environment
// variables, e.g. MANTIS_TARGET_LANGUAGE=fr.
var envKeys = []string{
	"name", "pipeline_name", "hop_duration", "target_language",
	"filter_expression", "metrics_port",
}

// Load reads and validates the job file at path. When onChange is non-nil the
// file is additionally watched for edits and onChange is invoked per change; a
// running worker keeps the configuration it started with, so the callback
// typically just surfaces a restart hint.
func Load(path string, onChange func(fsnotify.Event)) (*Job, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MANTIS")
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load the job file %s, %w", path, err)
	}
	j := &Job{}
	if err := v.Unmarshal(j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the job file %s, %w", path, err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	if onChange != nil {
		v.WatchConfig()
		v.OnConfigChange(onChange)
	}
	return j, nil
}
