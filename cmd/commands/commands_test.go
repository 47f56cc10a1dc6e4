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

package commands

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Commands(t *testing.T) {

	t.Run("test root", func(t *testing.T) {
		b := bytes.NewBufferString("")
		rootCmd.SetOut(b)
		rootCmd.SetArgs([]string{"help"})
		assert.NotPanics(t, Execute)
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Available Commands")
	})

	t.Run("Worker", func(t *testing.T) {
		cmd := NewWorkerCommand()
		assert.Equal(t, "worker", cmd.Use)
		assert.True(t, cmd.HasLocalFlags())
		assert.Equal(t, "string", cmd.Flag("job").Value.Type())
		assert.Equal(t, "job.yaml", cmd.Flag("job").DefValue)
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		cmd.SetArgs([]string{"--job=testdata/no-such-job.yaml"})
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load the job file")
	})

	t.Run("Version", func(t *testing.T) {
		cmd := NewVersionCommand()
		assert.Equal(t, "version", cmd.Use)
		b := bytes.NewBufferString("")
		cmd.SetOut(b)
		assert.NoError(t, cmd.Execute())
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Version:")
	})
}
