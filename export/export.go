// Package export composes encoder output, per-frame assets, and metadata
// into downloadable artifacts.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"time"

	"pkt.systems/framereel/encoder"
	"pkt.systems/framereel/internal/logx"
	"pkt.systems/framereel/schema"
)

// Options select the artifact type and its contents.
type Options struct {
	Format schema.ExportFormat
	// IncludeMetadata adds the JSON metadata document to bundle exports.
	IncludeMetadata bool
	// IncludeHTML adds per-frame markup snapshots to the metadata document.
	IncludeHTML bool
	// Filename overrides the derived artifact name (without extension).
	Filename string
	// Encode tunes the underlying encoders.
	Encode encoder.Options
	// Progress, when set, receives incremental stage notifications.
	Progress func(schema.ExportProgress)
}

// Artifact is one finished export.
type Artifact struct {
	Payload  []byte
	Filename string
	MIMEType string
	Size     int64
}

// Export renders a reel into the requested artifact. Single-format exports
// invoke the matching encoder directly; bundle exports assemble a zip
// archive with both animations, per-frame assets, optional metadata, and a
// static viewer document.
func Export(ctx context.Context, reel schema.Reel, opts Options) (Artifact, error) {
	if len(reel.Frames) == 0 {
		return Artifact{}, schema.ErrNoFrames
	}
	name := opts.Filename
	if name == "" {
		name = baseName(reel.Title, reel.StartTime)
	}

	switch opts.Format {
	case schema.FormatGIF:
		report(opts, schema.ExportProgress{Stage: schema.StageEncodeGIF})
		payload, err := encoder.EncodeGIF(reel.Frames, opts.Encode)
		if err != nil {
			return Artifact{}, err
		}
		return artifact(payload, name+".gif", "image/gif"), nil
	case schema.FormatAPNG:
		report(opts, schema.ExportProgress{Stage: schema.StageEncodeAPNG})
		payload, err := encoder.EncodeAPNG(reel.Frames, opts.Encode)
		if err != nil {
			return Artifact{}, err
		}
		return artifact(payload, name+".png", "image/png"), nil
	case schema.FormatBundle:
		payload, err := bundle(ctx, reel, name, opts)
		if err != nil {
			return Artifact{}, err
		}
		return artifact(payload, name+".zip", "application/zip"), nil
	default:
		return Artifact{}, fmt.Errorf("%w: %q", schema.ErrUnsupportedFormat, opts.Format)
	}
}

func artifact(payload []byte, filename, mime string) Artifact {
	return Artifact{Payload: payload, Filename: filename, MIMEType: mime, Size: int64(len(payload))}
}

func report(opts Options, progress schema.ExportProgress) {
	if opts.Progress != nil {
		opts.Progress(progress)
	}
}

// bundle assembles the zip archive. Layout, relative to the archive root:
// the two animations at the top level, per-frame stills under pngs/ and
// single-frame animations under gifs/ (1-based, zero-padded index), then the
// optional metadata document and the viewer.
func bundle(ctx context.Context, reel schema.Reel, name string, opts Options) ([]byte, error) {
	log := logx.WithReel(logx.Ctx(ctx), reel.ID)
	started := time.Now()

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)

	report(opts, schema.ExportProgress{Stage: schema.StageEncodeGIF})
	gifData, err := encoder.EncodeGIF(reel.Frames, opts.Encode)
	if err != nil {
		return nil, err
	}
	if err := writeEntry(archive, name+".gif", gifData); err != nil {
		return nil, err
	}

	report(opts, schema.ExportProgress{Stage: schema.StageEncodeAPNG})
	apngData, err := encoder.EncodeAPNG(reel.Frames, opts.Encode)
	if err != nil {
		return nil, err
	}
	if err := writeEntry(archive, name+".png", apngData); err != nil {
		return nil, err
	}

	for i, frame := range reel.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(opts, schema.ExportProgress{Stage: schema.StageFrameAssets, Step: i + 1, Total: len(reel.Frames)})
		still := fmt.Sprintf("pngs/frame-%03d.png", frame.Order+1)
		if err := writeEntry(archive, still, frame.Image); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frameGIF, err := encoder.EncodeStillGIF(frame, opts.Encode)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if err := writeEntry(archive, fmt.Sprintf("gifs/frame-%03d.gif", frame.Order+1), frameGIF); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	if opts.IncludeMetadata {
		report(opts, schema.ExportProgress{Stage: schema.StageMetadata})
		doc, err := metadataJSON(reel, opts.IncludeHTML)
		if err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
		if err := writeEntry(archive, name+"-metadata.json", doc); err != nil {
			return nil, err
		}
	}

	report(opts, schema.ExportProgress{Stage: schema.StageViewer})
	viewer, err := viewerHTML(viewerData{
		Title:       reel.Title,
		Description: reel.Description,
		FrameCount:  len(reel.Frames),
		DurationMS:  reel.Metadata.Duration.Milliseconds(),
		ClickCount:  reel.Metadata.ClickCount,
		GIFName:     name + ".gif",
		APNGName:    name + ".png",
	})
	if err != nil {
		return nil, fmt.Errorf("viewer: %w", err)
	}
	if err := writeEntry(archive, name+"-viewer.html", viewer); err != nil {
		return nil, err
	}

	report(opts, schema.ExportProgress{Stage: schema.StageFinalize})
	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	log.Debug("bundle assembled", "frames", len(reel.Frames), "bytes", buf.Len(), "took_ms", time.Since(started).Milliseconds())
	return buf.Bytes(), nil
}

func writeEntry(archive *zip.Writer, name string, data []byte) error {
	w, err := archive.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
