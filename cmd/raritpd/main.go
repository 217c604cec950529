package main

import (
	"database/sql"
	"time"

	"raritp-backend/lib/configutil"
	"raritp-backend/lib/telemetry"
	"raritp-backend/lib/util/serviceutil"
	"raritp-backend/services/itp"
	itpdb "raritp-backend/services/itp/db"

	_ "modernc.org/sqlite"
)

type Config struct {
	// path to the sqlite file holding the last record per vehicle
	Database string `json:"database"`
	Port     int    `json:"port"`
	// how often every vehicle is re-checked; 720h = 30 days
	PollIntervalHours int `json:"poll_interval_hours"`
	// when set, downloaded captchas are dumped here for debugging
	CaptchaDebugDir string `json:"captcha_debug_dir"`
	// override for testing against a portal mock
	PortalUrl string `json:"portal_url"`

	Vehicles []itp.VehicleConfig `json:"vehicles"`
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(itpdb.Schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func main() {
	ctx := serviceutil.SignalContext()

	_, err := telemetry.SetupFromEnv(ctx, "raritpd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx)

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Database == "" {
		config.Database = "raritp.db"
	}
	if config.Port == 0 {
		config.Port = 9410
	}

	db, err := openDatabase(config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	service, err := itp.NewService(db, itp.Options{
		Vehicles:        config.Vehicles,
		PortalUrl:       config.PortalUrl,
		CaptchaDebugDir: config.CaptchaDebugDir,
		PollInterval:    time.Duration(config.PollIntervalHours) * time.Hour,
	})
	if err != nil {
		serviceutil.Fatal("failed to setup itp service", err)
	}

	// first refresh happens right away so the API has data to serve,
	// the daemon takes over from there
	go func() {
		service.RefreshAll(ctx)
		service.RefreshDaemon(ctx)
	}()

	go serviceutil.StartHttpServer(config.Port, service.Routes())

	<-ctx.Done()
}
