/*
LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean Shorts. Ocean Shorts is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean Shorts is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

package ci

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ausocean/shorts/scheduler"
)

// DefaultSchedule runs the job three times a day. Hosted CI schedules are
// in UTC.
const DefaultSchedule = "0 6,12,18 * * *"

// Workflow defaults.
const (
	DefaultName      = "Shorts Automation"
	DefaultGoVersion = "1.24"
	DefaultTimeout   = 60 // Minutes.
	DefaultRunner    = "ubuntu-latest"
)

// ErrBadSchedule is returned for schedules the CI service cannot run.
var ErrBadSchedule = errors.New("invalid workflow schedule")

// WorkflowOptions are the options for rendering a workflow.
type WorkflowOptions struct {
	Name      string
	Schedule  string // Five-field cron expression.
	Channel   string // Channel credentials are written for.
	GoVersion string
	Timeout   int // Job timeout in minutes.
}

func (o *WorkflowOptions) defaults() {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Schedule == "" {
		o.Schedule = DefaultSchedule
	}
	if o.Channel == "" {
		o.Channel = DefaultChannel
	}
	if o.GoVersion == "" {
		o.GoVersion = DefaultGoVersion
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

type workflow struct {
	Name string         `yaml:"name"`
	On   triggers       `yaml:"on"`
	Jobs map[string]job `yaml:"jobs"`
}

type triggers struct {
	Schedule         []cronTrigger `yaml:"schedule"`
	WorkflowDispatch dispatch      `yaml:"workflow_dispatch"`
}

type cronTrigger struct {
	Cron string `yaml:"cron"`
}

type dispatch struct {
	Inputs map[string]input `yaml:"inputs"`
}

type input struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Type        string `yaml:"type"`
	Default     string `yaml:"default,omitempty"`
}

type job struct {
	RunsOn         string `yaml:"runs-on"`
	TimeoutMinutes int    `yaml:"timeout-minutes"`
	Steps          []step `yaml:"steps"`
}

type step struct {
	Name string            `yaml:"name"`
	If   string            `yaml:"if,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
	Run  string            `yaml:"run,omitempty"`
}

// Workflow renders a GitHub Actions workflow that builds the application,
// writes config and credentials from secrets, and runs one generate and
// upload cycle on each scheduled time or manual trigger.
func Workflow(opts WorkflowOptions) ([]byte, error) {
	opts.defaults()
	crons, err := SplitSchedule(opts.Schedule)
	if err != nil {
		return nil, err
	}

	wf := workflow{
		Name: opts.Name,
		On: triggers{
			WorkflowDispatch: dispatch{Inputs: map[string]input{
				"channel": {Description: "Channel to run", Type: "string", Default: opts.Channel},
				"topic":   {Description: "Topic, picked automatically when empty", Type: "string"},
				"dry_run": {Description: "Generate without uploading", Type: "boolean", Default: "false"},
			}},
		},
	}
	for _, c := range crons {
		wf.On.Schedule = append(wf.On.Schedule, cronTrigger{Cron: c})
	}

	env := make(map[string]string)
	for _, s := range Secrets {
		env[s.Name] = fmt.Sprintf("${{ secrets.%s }}", s.Name)
	}
	channel := fmt.Sprintf("${{ inputs.channel || '%s' }}", opts.Channel)

	wf.Jobs = map[string]job{
		"generate-and-upload": {
			RunsOn:         DefaultRunner,
			TimeoutMinutes: opts.Timeout,
			Steps: []step{
				{Name: "Checkout", Uses: "actions/checkout@v4"},
				{Name: "Set up Go", Uses: "actions/setup-go@v5", With: map[string]string{"go-version": opts.GoVersion}},
				{Name: "Install ffmpeg", Run: "sudo apt-get update && sudo apt-get install -y ffmpeg"},
				{
					Name: "Restore upload history",
					Uses: "actions/cache@v4",
					With: map[string]string{
						"path":         "store",
						"key":          "shorts-store-${{ github.run_id }}",
						"restore-keys": "shorts-store-",
					},
				},
				{Name: "Build", Run: "go build -o shorts ./cmd/shorts"},
				{Name: "Write config and credentials", Env: env, Run: fmt.Sprintf("./shorts ci setup --channel %q", channel)},
				{
					Name: "Generate and upload",
					Run: fmt.Sprintf("./shorts run --channel %q --topic %q ${{ inputs.dry_run && '--dry-run' || '' }}",
						channel, "${{ inputs.topic }}"),
				},
				{
					Name: "Upload logs",
					If:   "always()",
					Uses: "actions/upload-artifact@v4",
					With: map[string]string{"name": "logs", "path": "logs/", "retention-days": "7"},
				},
			},
		},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err = enc.Encode(wf)
	if err != nil {
		return nil, fmt.Errorf("could not encode workflow: %w", err)
	}
	err = enc.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SplitSchedule splits a five-field cron expression with a list of hours
// into one expression per hour, so that each run shows as its own
// schedule entry. Other expressions are returned as is.
func SplitSchedule(expr string) ([]string, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: %q: want five fields", ErrBadSchedule, expr)
	}
	err := scheduler.Validate(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadSchedule, expr, err)
	}

	hours := strings.Split(fields[1], ",")
	if len(hours) == 1 {
		return []string{strings.Join(fields, " ")}, nil
	}
	exprs := make([]string, 0, len(hours))
	for _, h := range hours {
		if h == "" {
			return nil, fmt.Errorf("%w: %q: empty hour", ErrBadSchedule, expr)
		}
		f := append([]string{fields[0], h}, fields[2:]...)
		exprs = append(exprs, strings.Join(f, " "))
	}
	return exprs, nil
}
