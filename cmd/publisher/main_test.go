package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

func TestTruncatePrompt(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		length int
		want   string
	}{
		{name: "short", input: "a red bicycle", length: 20, want: "a red bicycle"},
		{name: "ascii", input: "a red bicycle", length: 5, want: "a red"},
		{name: "multibyte", input: "красный велосипед", length: 7, want: "красный"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncatePrompt(tt.input, tt.length)
			if got != tt.want {
				t.Fatalf("truncatePrompt(%q, %d)=%q; want %q", tt.input, tt.length, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

type recordingRunner struct {
	prompt string
	report *domain.Report
	err    error
}

func (r *recordingRunner) Run(ctx context.Context, prompt string, reporters ...domain.Reporter) (*domain.Report, error) {
	r.prompt = prompt
	return r.report, r.err
}

func TestTruncatingRunner(t *testing.T) {
	inner := &recordingRunner{}
	runner := truncatingRunner{inner}

	runner.Run(context.Background(), strings.Repeat("ж", maxPromptLength+10))

	if n := utf8.RuneCountInString(inner.prompt); n != maxPromptLength {
		t.Fatalf("prompt has %d characters; want %d", n, maxPromptLength)
	}
}

func TestRunOnce(t *testing.T) {
	ok := &domain.Report{Results: []domain.Result{{Stage: domain.StagePublish, Subject: "image_0.jpeg", Value: "o/r@main:image_0.jpeg"}}}
	partial := &domain.Report{Results: []domain.Result{{Stage: domain.StagePublish, Subject: "image_0.jpeg", Err: errors.New("422")}}}

	if err := runOnce(context.Background(), &recordingRunner{report: ok}, "p"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := runOnce(context.Background(), &recordingRunner{report: partial}, "p"); err == nil {
		t.Fatalf("expected an error when an upload failed")
	}
	if err := runOnce(context.Background(), &recordingRunner{err: domain.ErrEmptyPrompt}, ""); !errors.Is(err, domain.ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}
