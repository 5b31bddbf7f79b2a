package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// setupAnswers are the choices collected by `cinechat init`.
type setupAnswers struct {
	Bind        string
	Store       string // sqlite or postgres
	Model       string
	BearerToken bool
	StreamWords int
	Telemetry   bool
}

func defaultAnswers() setupAnswers {
	return setupAnswers{
		Bind:  "127.0.0.1:8000",
		Store: "sqlite",
		Model: "gpt-4o-mini",
	}
}

var configTemplate = template.Must(template.New("cinechat.yaml").Parse(`version: "1"

log:
  level: ${CINECHAT_LOG_LEVEL:-info}
  format: text

agent:
  model: {{ .Model }}
  max_iterations: 10
  max_output_tokens: 1000
  memory_token_limit: 4000
  max_run_age: 10m
{{- if .Telemetry }}

telemetry:
  enabled: true
  endpoint: ${OTEL_EXPORTER_OTLP_ENDPOINT:-localhost:4318}
  insecure: true
{{- end }}

modules:
  gateway.http:
    bind: "{{ .Bind }}"
    stream_chunk_words: {{ .StreamWords }}
{{- if .BearerToken }}
    auth:
      bearer_token: ${CINECHAT_API_TOKEN}
{{- end }}
{{- if eq .Store "postgres" }}
  memory.gorm:
    driver: postgres
    dsn: ${MEMORY_DB_URI}
{{- else }}
  memory.sqlite:
    wal: true
{{- end }}
  provider.concentrate:
    api_key: ${CONCENTRATE_API_KEY}
    model: {{ .Model }}
  content.tmdb:
    api_key: ${TMDB_API_KEY}
  content.tvmaze: {}
`))

func renderConfig(a setupAnswers) ([]byte, error) {
	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, a); err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	return buf.Bytes(), nil
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if !yes {
				if err := askSetup(&answers); err != nil {
					return err
				}
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Export CONCENTRATE_API_KEY and TMDB_API_KEY, then run: cinechat serve -c %s\n", output, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "cinechat.yaml", "Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the defaults without prompting")
	return cmd
}

func askSetup(a *setupAnswers) error {
	words := "0"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Value(&a.Bind).
				Validate(func(s string) error {
					if !strings.Contains(s, ":") {
						return errors.New("expected host:port")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Chat history store").
				Options(
					huh.NewOption("SQLite file in the data directory", "sqlite"),
					huh.NewOption("PostgreSQL (MEMORY_DB_URI)", "postgres"),
				).
				Value(&a.Store),
			huh.NewInput().
				Title("Model").
				Value(&a.Model),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Require a bearer token (CINECHAT_API_TOKEN)?").
				Value(&a.BearerToken),
			huh.NewInput().
				Title("Words per streamed chunk (0 forwards model deltas)").
				Value(&words).
				Validate(func(s string) error {
					_, err := parseWords(s)
					return err
				}),
			huh.NewConfirm().
				Title("Export traces over OTLP/HTTP?").
				Value(&a.Telemetry),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	n, err := parseWords(words)
	if err != nil {
		return err
	}
	a.StreamWords = n
	return nil
}

func parseWords(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, errors.New("expected a number >= 0")
	}
	return n, nil
}
