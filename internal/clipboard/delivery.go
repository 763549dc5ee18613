package clipboard

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultPasteDelay = 100 * time.Millisecond

type DeliveryOptions struct {
	AutoPaste bool
	// PasteDelay lets the target window settle between copy and paste.
	PasteDelay          time.Duration
	KeepTrailingNewline bool
	// CopyEmpty replaces the clipboard even when nothing was transcribed.
	CopyEmpty bool
	Logger    *zap.Logger
}

type Delivered struct {
	Copied bool
	Pasted bool
	Text   string
}

// Delivery puts a transcript on the clipboard and optionally pastes it.
// Clipboard failures are returned; paste failures are logged only, since the
// text is already on the clipboard.
type Delivery struct {
	clipboard Clipboard
	paster    Paster
	opts      DeliveryOptions
}

func NewDelivery(c Clipboard, p Paster, opts DeliveryOptions) *Delivery {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Delivery{clipboard: c, paster: p, opts: opts}
}

func (d *Delivery) Deliver(ctx context.Context, transcript string) (Delivered, error) {
	text := ApplyNewlinePolicy(transcript, d.opts.KeepTrailingNewline)
	if strings.TrimSpace(text) == "" && !d.opts.CopyEmpty {
		d.opts.Logger.Info("empty transcript; clipboard left unchanged")
		return Delivered{}, nil
	}

	if err := d.clipboard.SetText(ctx, text); err != nil {
		return Delivered{}, err
	}
	result := Delivered{Copied: true, Text: text}

	if !d.opts.AutoPaste || d.paster == nil {
		return result, nil
	}

	if d.opts.PasteDelay > 0 {
		timer := time.NewTimer(d.opts.PasteDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.opts.Logger.Warn("paste skipped", zap.Error(ctx.Err()))
			return result, nil
		case <-timer.C:
		}
	}

	if err := d.paster.Paste(ctx); err != nil {
		d.opts.Logger.Warn("paste failed; clipboard remains set", zap.Error(err))
		return result, nil
	}
	result.Pasted = true
	return result, nil
}

// ApplyNewlinePolicy strips trailing line breaks, then appends exactly one
// when keep is set so an auto-paste submits the line.
func ApplyNewlinePolicy(text string, keep bool) string {
	text = strings.TrimRight(text, "\r\n")
	if keep && text != "" {
		return text + "\n"
	}
	return text
}
