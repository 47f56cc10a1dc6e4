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
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ApollusEHS-OSS/mantis"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/metrics"
	"github.com/ApollusEHS-OSS/mantis/pkg/pipeline"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/signals"
)

func NewWorkerCommand() *cobra.Command {
	var jobFile string

	command := &cobra.Command{
		Use:   "worker",
		Short: "Start a worker from a job file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger().Named("worker")
			j, err := job.Load(jobFile, func(e fsnotify.Event) {
				// the running worker keeps the job it started with
				logger.Infow("Job file changed, restart the worker to pick it up", "file", e.Name)
			})
			if err != nil {
				return err
			}
			logger = logger.With("pipeline", j.GetPipelineName()).With("vertex", j.GetName())
			v := mantis.GetVersion()
			logger.Infow("Starting worker", "version", v)
			metrics.BuildInfo.WithLabelValues(v.Version, v.Platform).Set(1)

			p, err := pipeline.New(j, pipeline.WithLogger(logger))
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(signals.SetupSignalHandler(), logger)
			return p.Run(ctx)
		},
	}
	command.Flags().StringVarP(&jobFile, "job", "f", "job.yaml", "Path to the job file")
	return command
}
