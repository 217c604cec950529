// Package itp monitors the roadworthiness records of registered
// vehicles: it periodically queries the RAR portal for each VIN,
// persists the last known record and serves it over a small read API.
package itp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"raritp-backend/lib/ocr"
	"raritp-backend/lib/scrapers/rarom"
	"raritp-backend/lib/timezone"
)

// VehicleConfig is one registration: a VIN to monitor plus the OCR
// endpoint used to solve its captchas. The endpoint is accepted as a
// full URL or a bare host/IP.
type VehicleConfig struct {
	Name        string `json:"name"`
	VIN         string `json:"vin"`
	OCREndpoint string `json:"ocr_endpoint"`
}

type Options struct {
	Vehicles []VehicleConfig
	// defaults to rarom.DefaultBaseUrl
	PortalUrl string
	// when set, every downloaded captcha is dumped here for debugging
	CaptchaDebugDir string
	// refresh cadence for the poll daemon, defaults to 720h
	PollInterval time.Duration
}

type vehicle struct {
	config VehicleConfig
	portal *rarom.Client
}

type Service struct {
	store    Store
	vehicles map[string]vehicle
	interval time.Duration
}

func NewService(database *sql.DB, opts Options) (*Service, error) {
	interval := opts.PollInterval
	if interval == 0 {
		interval = time.Hour * 720
	}

	var sink rarom.CaptchaSink
	if opts.CaptchaDebugDir != "" {
		sink = captchaDebugSink(opts.CaptchaDebugDir)
	}

	vehicles := map[string]vehicle{}
	for _, config := range opts.Vehicles {
		if config.VIN == "" {
			return nil, fmt.Errorf("vehicle %q has no vin", config.Name)
		}

		// each vehicle gets its own solver so differently-configured
		// OCR endpoints never bleed into each other
		solver := ocr.NewClient(ocr.EndpointFromHost(config.OCREndpoint))
		portal, err := rarom.NewClient(rarom.ClientOptions{
			BaseUrl:     opts.PortalUrl,
			Solver:      solver,
			CaptchaSink: sink,
		})
		if err != nil {
			return nil, fmt.Errorf("setup vehicle %s: %w", config.VIN, err)
		}
		vehicles[config.VIN] = vehicle{config: config, portal: portal}
	}

	return &Service{
		store:    NewStore(database),
		vehicles: vehicles,
		interval: interval,
	}, nil
}

func (s *Service) Store() Store {
	return s.store
}

// CheckVehicle runs one full fetch cycle for a registered VIN and
// persists the resulting record.
func (s *Service) CheckVehicle(ctx context.Context, vin string) (Record, error) {
	v, ok := s.vehicles[vin]
	if !ok {
		return Record{}, fmt.Errorf("vin %s is not registered", vin)
	}

	outcome, err := v.portal.Check(ctx, vin)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		VIN:            vin,
		Status:         outcome.Status,
		ExpirationDate: outcome.ExpirationDate,
		LastChecked:    timezone.Now(),
	}
	err = s.store.Upsert(ctx, record)
	if err != nil {
		return Record{}, fmt.Errorf("persist record for %s: %w", vin, err)
	}

	slog.InfoContext(ctx, "itp record refreshed",
		"vin", vin, "status", record.Status, "expires", record.ExpirationDate)
	return record, nil
}

// RefreshAll checks every registered vehicle. Failures are logged and
// skipped so one flaky captcha run cannot starve the other vehicles.
// Checks run in serial; attempts are already session-bound and the
// portal does not appreciate being hammered.
func (s *Service) RefreshAll(ctx context.Context) {
	for vin := range s.vehicles {
		_, err := s.CheckVehicle(ctx, vin)
		if err != nil {
			slog.ErrorContext(ctx, "vehicle refresh failed", "vin", vin, "err", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// best-effort debug persistence of captcha images; failures are logged
// and never reach the fetch pipeline.
func captchaDebugSink(dir string) rarom.CaptchaSink {
	return func(vin string, attempt int, image []byte) {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			slog.Error("failed to create captcha debug dir", "dir", dir, "err", err)
			return
		}

		name := fmt.Sprintf(
			"captcha_%s_attempt%d_%s.png",
			unsafeFilenameChars.ReplaceAllString(vin, "_"),
			attempt,
			timezone.Now().Format("20060102_150405"),
		)
		path := filepath.Join(dir, name)
		err = os.WriteFile(path, image, 0o644)
		if err != nil {
			slog.Error("failed to save captcha image", "path", path, "err", err)
			return
		}
		slog.Debug("saved captcha image", "path", path)
	}
}
