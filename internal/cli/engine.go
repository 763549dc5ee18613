package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/fmueller/voxdict/internal/download"
	"github.com/fmueller/voxdict/internal/record"
	"github.com/fmueller/voxdict/internal/session"
	"github.com/fmueller/voxdict/internal/whisper"
)

const noSpeechHint = "No speech detected. Check mic mute and selected input device, then try again."

// prepareEngine resolves the model and the whisper-cli binary and returns the
// request template every transcription starts from.
func (a *appState) prepareEngine(ctx context.Context) (whisper.Engine, whisper.TranscriptionRequest, error) {
	model, err := a.ensureModelAvailable(ctx)
	if err != nil {
		return nil, whisper.TranscriptionRequest{}, err
	}

	self, err := os.Executable()
	if err != nil {
		self = ""
	}
	enginePath, err := whisper.ResolveEnginePath(a.cfg.Engine.Path, self)
	if err != nil {
		return nil, whisper.TranscriptionRequest{}, err
	}

	mode, err := whisper.ParseOutputMode(a.cfg.Engine.OutputMode)
	if err != nil {
		return nil, whisper.TranscriptionRequest{}, err
	}

	engine := whisper.NewCLIEngine(enginePath, whisper.EngineOptions{
		Timeout: a.cfg.Engine.Timeout,
		Mode:    mode,
		Logger:  a.log(),
	})
	a.log().Info("whisper engine ready",
		zap.String("engine", engine.Executable()),
		zap.Stringer("output", engine.OutputMode(ctx)),
		zap.String("model", model.Path),
		zap.String("language", a.cfg.Language),
	)

	return engine, whisper.TranscriptionRequest{
		ModelPath: model.Path,
		Language:  a.cfg.Language,
		Prompt:    a.cfg.Engine.Prompt,
		Threads:   a.cfg.Engine.Threads,
	}, nil
}

func (a *appState) ensureModelAvailable(ctx context.Context) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(a.cfg.Model, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.cfg.AutoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `voxdict setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := a.fetchModel(ctx, resolved); err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

func (a *appState) fetchModel(ctx context.Context, model whisper.ResolvedModel) error {
	fetcher := download.NewFetcher(a.log(), !a.progressEnabled())
	err := fetcher.Fetch(ctx, download.Request{
		URL:         model.URL,
		Destination: model.Path,
		SHA256:      model.SHA256,
		Label:       "Downloading " + model.Name,
	})
	if err != nil {
		return fmt.Errorf("download model %q: %w", model.Name, err)
	}
	return nil
}

func (a *appState) newRecorder() session.Capture {
	return record.NewRecorder(record.DefaultBackends(runtime.GOOS), a.cfg.Audio.Backend, record.Options{
		SampleRate: a.cfg.Audio.SampleRate,
		Channels:   a.cfg.Audio.Channels,
		Input:      a.cfg.Audio.Input,
		Logger:     a.log(),
	})
}
