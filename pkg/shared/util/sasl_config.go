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
	"os"
	"strings"

	"github.com/IBM/sarama"

	"github.com/ApollusEHS-OSS/mantis/pkg/job"
)

// UpdateSASLConfig fills in the SASL section of a sarama config from the
// sink spec. The credentials are read from the environment variables the
// spec names.
func UpdateSASLConfig(config *sarama.Config, s *job.SASL) error {
	user, ok := os.LookupEnv(s.UserEnv)
	if !ok {
		return fmt.Errorf("environment variable %q for the sasl user is not set", s.UserEnv)
	}
	password, ok := os.LookupEnv(s.PasswordEnv)
	if !ok {
		return fmt.Errorf("environment variable %q for the sasl password is not set", s.PasswordEnv)
	}
	config.Net.SASL.Enable = true
	config.Net.SASL.Handshake = true
	config.Net.SASL.User = user
	config.Net.SASL.Password = password
	switch strings.ToUpper(s.Mechanism) {
	case sarama.SASLTypePlaintext:
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case sarama.SASLTypeSCRAMSHA256:
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
	case sarama.SASLTypeSCRAMSHA512:
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
	default:
		return fmt.Errorf("unsupported sasl mechanism %q", s.Mechanism)
	}
	return nil
}
