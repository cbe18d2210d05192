package gcp

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type memWriter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memWriter) Write(_ context.Context, bucket, key, contentType string, body io.Reader) error {
	if m.err != nil {
		return m.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[bucket+"/"+key] = b
	m.types[bucket+"/"+key] = contentType
	return nil
}

func TestArchiveRawWritesVersionedObject(t *testing.T) {
	w := &memWriter{}
	a := newRawArchive(logger.Nop(), ArchiveConfig{Bucket: "raw-bucket", Prefix: "/snapshots/", Mode: ArchiveModeGCS}, w, nil)

	uri, err := a.ArchiveRaw(context.Background(), "#abc123", "0f1e2d3c4b5a6978", []byte(`{"clanTag":"#ABC123"}`))
	if err != nil {
		t.Fatalf("ArchiveRaw: %v", err)
	}
	if want := "gs://raw-bucket/snapshots/ABC123/0f1e2d3c4b5a6978.json"; uri != want {
		t.Fatalf("uri = %s, want %s", uri, want)
	}
	obj := "raw-bucket/snapshots/ABC123/0f1e2d3c4b5a6978.json"
	if string(w.objects[obj]) != `{"clanTag":"#ABC123"}` {
		t.Fatalf("stored body = %q", w.objects[obj])
	}
	if w.types[obj] != "application/json" {
		t.Fatalf("content type = %q", w.types[obj])
	}
}

func TestArchiveRawErrors(t *testing.T) {
	a := newRawArchive(logger.Nop(), ArchiveConfig{Bucket: "b", Mode: ArchiveModeGCS}, &memWriter{}, nil)
	if _, err := a.ArchiveRaw(context.Background(), "#ABC", " ", nil); err == nil {
		t.Fatal("expected error for empty payload version")
	}

	down := errors.New("bucket unavailable")
	a = newRawArchive(logger.Nop(), ArchiveConfig{Bucket: "b", Mode: ArchiveModeGCS}, &memWriter{err: down}, nil)
	if _, err := a.ArchiveRaw(context.Background(), "#ABC", "v1", []byte("{}")); !errors.Is(err, down) {
		t.Fatalf("err = %v, want %v", err, down)
	}

	var nilArchive *RawArchive
	if _, err := nilArchive.ArchiveRaw(context.Background(), "#ABC", "v1", nil); err == nil {
		t.Fatal("expected error from nil archive")
	}
	if err := nilArchive.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}

func TestResolveArchiveConfigFromEnv(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		emulator string
		wantMode ArchiveMode
		wantCode ArchiveConfigErrorCode
	}{
		{name: "default gcs", wantMode: ArchiveModeGCS},
		{name: "emulator inferred", emulator: "http://fake-gcs:4443", wantMode: ArchiveModeGCSEmulator},
		{name: "explicit gcs wins over emulator host", mode: "gcs", emulator: "http://fake-gcs:4443", wantMode: ArchiveModeGCS},
		{name: "emulator without host", mode: "gcs_emulator", wantCode: ArchiveConfigErrorMissingEmulatorHost},
		{name: "emulator with bad host", mode: "GCS_EMULATOR", emulator: "fake-gcs:4443", wantCode: ArchiveConfigErrorInvalidEmulatorHost},
		{name: "unknown mode", mode: "s3", wantCode: ArchiveConfigErrorInvalidMode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("RAW_ARCHIVE_BUCKET", "raw")
			t.Setenv("RAW_ARCHIVE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.emulator)

			cfg, err := ResolveArchiveConfigFromEnv(nil)
			if tc.wantCode != "" {
				var cfgErr *ArchiveConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Code != tc.wantCode {
					t.Fatalf("err = %v, want code %s", err, tc.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveArchiveConfigFromEnv: %v", err)
			}
			if cfg.Mode != tc.wantMode {
				t.Fatalf("mode = %s, want %s", cfg.Mode, tc.wantMode)
			}
			if !cfg.Enabled() || cfg.Prefix != "snapshots" {
				t.Fatalf("cfg = %+v", cfg)
			}
		})
	}
}
