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
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"

	"github.com/ApollusEHS-OSS/mantis/pkg/job"
)

func TestUpdateSASLConfig(t *testing.T) {
	t.Setenv("TEST_SASL_USER", "admin")
	t.Setenv("TEST_SASL_PASSWORD", "s3cr3t")

	spec := &job.SASL{UserEnv: "TEST_SASL_USER", PasswordEnv: "TEST_SASL_PASSWORD"}

	t.Run("plain", func(t *testing.T) {
		spec.Mechanism = "PLAIN"
		config := sarama.NewConfig()
		err := UpdateSASLConfig(config, spec)
		assert.NoError(t, err)
		assert.True(t, config.Net.SASL.Enable)
		assert.True(t, config.Net.SASL.Handshake)
		assert.Equal(t, "admin", config.Net.SASL.User)
		assert.Equal(t, "s3cr3t", config.Net.SASL.Password)
		assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypePlaintext), config.Net.SASL.Mechanism)
		assert.Nil(t, config.Net.SASL.SCRAMClientGeneratorFunc)
	})

	t.Run("scram sha 256, case insensitive", func(t *testing.T) {
		spec.Mechanism = "scram-sha-256"
		config := sarama.NewConfig()
		err := UpdateSASLConfig(config, spec)
		assert.NoError(t, err)
		assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA256), config.Net.SASL.Mechanism)
		assert.NotNil(t, config.Net.SASL.SCRAMClientGeneratorFunc)
	})

	t.Run("scram sha 512", func(t *testing.T) {
		spec.Mechanism = "SCRAM-SHA-512"
		config := sarama.NewConfig()
		err := UpdateSASLConfig(config, spec)
		assert.NoError(t, err)
		assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), config.Net.SASL.Mechanism)
		assert.NotNil(t, config.Net.SASL.SCRAMClientGeneratorFunc)
	})

	t.Run("unsupported mechanism", func(t *testing.T) {
		spec.Mechanism = "OAUTHBEARER"
		err := UpdateSASLConfig(sarama.NewConfig(), spec)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sasl mechanism")
	})

	t.Run("missing user env", func(t *testing.T) {
		err := UpdateSASLConfig(sarama.NewConfig(), &job.SASL{Mechanism: "PLAIN", UserEnv: "TEST_SASL_NO_SUCH_USER", PasswordEnv: "TEST_SASL_PASSWORD"})
		assert.Error(t, err)
	})
}
