package render

import (
	"context"
	"fmt"
	"image"

	"github.com/emergingrobotics/go-title/pkg/control"
)

// Job is everything needed to render one titled frame. Nil inputs are not
// loaded, so the title IP keeps whatever it held before.
type Job struct {
	Preset       control.Preset
	LetterData   []byte
	LetterMatrix []byte
	Text         string
	Position     []byte
	Photo        image.Image
	// Parameter is written before processing when set
	Parameter *uint32
}

// Render resets the title IP, loads the job, processes it and reads back
// the frame
func (s *Session) Render(ctx context.Context, job Job) (*image.NRGBA64, error) {
	if job.Photo == nil {
		return nil, ErrNoPhoto
	}
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	steps := []struct {
		name string
		run  func() error
	}{
		{"reset", func() error { return s.Reset(ctx) }},
		{"letter data", func() error {
			if job.LetterData == nil {
				return nil
			}
			return s.LoadLetterData(ctx, job.LetterData)
		}},
		{"letter matrix", func() error {
			if job.LetterMatrix == nil {
				return nil
			}
			return s.LoadLetterMatrix(ctx, job.Preset, job.LetterMatrix)
		}},
		{"text", func() error {
			if job.Text == "" {
				return nil
			}
			return s.LoadText(ctx, job.Text)
		}},
		{"position", func() error {
			if job.Position == nil {
				return nil
			}
			return s.LoadPosition(ctx, job.Position)
		}},
		{"photo", func() error { return s.LoadPhoto(ctx, job.Photo, job.Preset) }},
		{"parameter", func() error {
			if job.Parameter == nil {
				return nil
			}
			return s.SetParameter(ctx, *job.Parameter)
		}},
		{"process", func() error { return s.Process(ctx, job.Preset) }},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("render %s: %w", step.name, err)
		}
	}
	return s.ReadFrame(ctx, job.Preset)
}
