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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/ApollusEHS-OSS/mantis/pkg/job"
)

// GetTLSConfig turns the job level TLS settings into a tls.Config. A nil
// config means plain text.
func GetTLSConfig(config *job.TLS) (*tls.Config, error) {
	if config == nil {
		return nil, nil
	}

	if len(config.CertPath)+len(config.KeyPath) > 0 && len(config.CertPath)*len(config.KeyPath) == 0 {
		// Only one of certPath and keyPath is configured
		return nil, fmt.Errorf("invalid tls config, both certPath and keyPath need to be configured")
	}

	c := &tls.Config{
		InsecureSkipVerify: config.InsecureSkipVerify,
	}
	if len(config.CACertPath) > 0 {
		caCert, err := os.ReadFile(config.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca cert file %s, %w", config.CACertPath, err)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(caCert)
		c.RootCAs = pool
	}

	if len(config.CertPath) > 0 && len(config.KeyPath) > 0 {
		clientCert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert key pair (%s, %s), %w", config.CertPath, config.KeyPath, err)
		}
		c.Certificates = []tls.Certificate{clientCert}
	}
	return c, nil
}
