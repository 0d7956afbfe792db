// Package assistant answers free-text questions about the attendance log
// through a hosted language model.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/metrics"
)

var (
	// ErrNotConfigured is returned when no language model credentials are set.
	ErrNotConfigured = errors.New("assistant not configured: set LLM_API_KEY")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is empty")
)

// Assistant builds prompts from the attendance log and forwards them.
type Assistant struct {
	store    attendance.Store
	provider Provider
}

// New creates an Assistant. provider may be nil, in which case Ask fails with
// ErrNotConfigured.
func New(store attendance.Store, provider Provider) *Assistant {
	return &Assistant{store: store, provider: provider}
}

// Ask answers question using the whole attendance log.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if a.provider == nil {
		return "", ErrNotConfigured
	}

	prompt, err := a.Prompt(ctx, question)
	if err != nil {
		return "", err
	}

	log := logging.Component("assistant")
	log.Infof("Asking %s: %s", a.provider.Name(), question)

	start := time.Now()
	answer, err := a.provider.Complete(ctx, prompt)
	metrics.AssistantLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AssistantQueries.WithLabelValues("error").Inc()
		log.Warnf("Query failed: %v", err)
		return "", err
	}
	metrics.AssistantQueries.WithLabelValues("ok").Inc()
	return answer, nil
}

// Prompt builds the full prompt for question without sending it. The
// statistics and the listing come from the same read of the log.
func (a *Assistant) Prompt(ctx context.Context, question string) (string, error) {
	var dump bytes.Buffer
	if err := a.store.Dump(ctx, &dump); err != nil {
		return "", fmt.Errorf("failed to read attendance log: %w", err)
	}
	records, err := attendance.ParseCSV(bytes.NewReader(dump.Bytes()))
	if err != nil {
		return "", err
	}

	listing := ""
	if len(records) > 0 {
		listing = dump.String()
	}
	return BuildPrompt(Summarize(records), listing, question)
}
